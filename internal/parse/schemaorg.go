package parse

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/placedir/refresh-cli/internal/model"
)

// SchemaOrgData is what we lift from a page's JSON-LD blocks.
type SchemaOrgData struct {
	Name    string
	Phone   string
	Address string
	Rating  *model.RatingObservation
	// RatingRejected marks an aggregateRating that was present but failed
	// validation, so reconciliation can flag it instead of losing it.
	RatingRejected bool
	HoursSpecs     []OpeningHoursSpec
	// OpeningHours carries the shorthand "Mo-Fr 09:00-17:00" form when a
	// page uses openingHours instead of openingHoursSpecification.
	OpeningHours []string
}

// Empty reports whether nothing useful was extracted.
func (d SchemaOrgData) Empty() bool {
	return d.Name == "" && d.Phone == "" && d.Address == "" &&
		d.Rating == nil && !d.RatingRejected &&
		len(d.HoursSpecs) == 0 && len(d.OpeningHours) == 0
}

// OpeningHoursSpec mirrors schema.org openingHoursSpecification.
type OpeningHoursSpec struct {
	Days   []string
	Opens  string
	Closes string
}

var twoLetterDays = map[string]time.Weekday{
	"mo": time.Monday, "tu": time.Tuesday, "we": time.Wednesday,
	"th": time.Thursday, "fr": time.Friday, "sa": time.Saturday, "su": time.Sunday,
}

// Weekdays resolves the dayOfWeek values, accepting full names,
// schema.org URLs and two-letter codes.
func (s OpeningHoursSpec) Weekdays() []time.Weekday {
	var out []time.Weekday
	for _, raw := range s.Days {
		name := strings.ToLower(raw)
		if idx := strings.LastIndex(name, "/"); idx >= 0 {
			name = name[idx+1:]
		}
		if d, ok := twoLetterDays[name]; ok {
			out = append(out, d)
			continue
		}
		if d, ok := dayAliases[name]; ok {
			out = append(out, d)
		}
	}
	return out
}

var jsonLDRe = regexp.MustCompile(`(?is)<script[^>]+type\s*=\s*["']application/ld\+json["'][^>]*>(.*?)</script>`)

// localBusinessTypes are the @type values we treat as describing the
// listed business itself, beyond the generic *Business suffix match.
var localBusinessTypes = map[string]bool{
	"organization": true,
	"restaurant":   true,
	"store":        true,
	"hotel":        true,
	"dentist":      true,
	"physician":    true,
	"attorney":     true,
}

// ExtractSchemaOrg walks the JSON-LD blocks in raw HTML (or a bare
// JSON-LD document) and extracts business fields from the first
// LocalBusiness/Organization node found. Missing or invalid JSON-LD
// yields an empty result, never an error.
func ExtractSchemaOrg(content string) SchemaOrgData {
	var blocks []string
	for _, m := range jsonLDRe.FindAllStringSubmatch(content, -1) {
		blocks = append(blocks, m[1])
	}
	if len(blocks) == 0 && looksLikeJSON(content) {
		blocks = append(blocks, content)
	}

	var data SchemaOrgData
	for _, block := range blocks {
		var doc any
		if err := json.Unmarshal([]byte(strings.TrimSpace(block)), &doc); err != nil {
			continue
		}
		for _, node := range flattenNodes(doc) {
			if !isBusinessNode(node) {
				continue
			}
			extractBusiness(node, &data)
			if !data.Empty() {
				return data
			}
		}
	}
	return data
}

// flattenNodes expands arrays and @graph wrappers into a flat node list.
func flattenNodes(doc any) []map[string]any {
	var nodes []map[string]any
	switch v := doc.(type) {
	case []any:
		for _, item := range v {
			nodes = append(nodes, flattenNodes(item)...)
		}
	case map[string]any:
		if graph, ok := v["@graph"]; ok {
			nodes = append(nodes, flattenNodes(graph)...)
		}
		nodes = append(nodes, v)
	}
	return nodes
}

func isBusinessNode(node map[string]any) bool {
	for _, t := range nodeTypes(node) {
		lower := strings.ToLower(t)
		if strings.HasSuffix(lower, "business") || localBusinessTypes[lower] {
			return true
		}
	}
	return false
}

// nodeTypes handles @type being a string or a list.
func nodeTypes(node map[string]any) []string {
	switch v := node["@type"].(type) {
	case string:
		return []string{v}
	case []any:
		var out []string
		for _, t := range v {
			if s, ok := t.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func extractBusiness(node map[string]any, data *SchemaOrgData) {
	if data.Name == "" {
		data.Name = asString(node["name"])
	}
	if data.Phone == "" {
		data.Phone = asString(node["telephone"])
	}
	if data.Address == "" {
		data.Address = extractAddress(node["address"])
	}
	if data.Rating == nil {
		obs, ok := extractAggregateRating(node["aggregateRating"])
		if ok {
			data.Rating = obs
		} else if obs != nil {
			data.RatingRejected = true
		}
	}

	switch hours := node["openingHoursSpecification"].(type) {
	case []any:
		for _, h := range hours {
			if spec, ok := extractHoursSpec(h); ok {
				data.HoursSpecs = append(data.HoursSpecs, spec)
			}
		}
	case map[string]any:
		if spec, ok := extractHoursSpec(hours); ok {
			data.HoursSpecs = append(data.HoursSpecs, spec)
		}
	}

	switch oh := node["openingHours"].(type) {
	case string:
		data.OpeningHours = append(data.OpeningHours, oh)
	case []any:
		for _, h := range oh {
			if s, ok := h.(string); ok {
				data.OpeningHours = append(data.OpeningHours, s)
			}
		}
	}
}

func extractHoursSpec(v any) (OpeningHoursSpec, bool) {
	node, ok := v.(map[string]any)
	if !ok {
		return OpeningHoursSpec{}, false
	}
	spec := OpeningHoursSpec{
		Opens:  asString(node["opens"]),
		Closes: asString(node["closes"]),
	}
	switch days := node["dayOfWeek"].(type) {
	case string:
		spec.Days = []string{days}
	case []any:
		for _, d := range days {
			if s, ok := d.(string); ok {
				spec.Days = append(spec.Days, s)
			}
		}
	}
	return spec, len(spec.Days) > 0
}

// extractAggregateRating reads ratingValue and reviewCount/ratingCount,
// tolerating both string and number encodings. An out-of-range value is
// returned with ok=false so the caller can record the rejection.
func extractAggregateRating(v any) (*model.RatingObservation, bool) {
	node, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	value, ok := asFloat(node["ratingValue"])
	if !ok {
		return nil, false
	}
	count := 0
	if n, ok := asFloat(node["reviewCount"]); ok {
		count = int(n)
	} else if n, ok := asFloat(node["ratingCount"]); ok {
		count = int(n)
	}
	obs := &model.RatingObservation{
		Value:    value,
		Count:    count,
		Source:   "schema_org",
		Explicit: true,
	}
	return obs, ValidRating(obs)
}

func extractAddress(v any) string {
	switch addr := v.(type) {
	case string:
		return addr
	case map[string]any:
		parts := []string{
			asString(addr["streetAddress"]),
			asString(addr["addressLocality"]),
			asString(addr["postalCode"]),
		}
		var nonEmpty []string
		for _, p := range parts {
			if p != "" {
				nonEmpty = append(nonEmpty, p)
			}
		}
		return strings.Join(nonEmpty, ", ")
	}
	return ""
}

func asString(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(n), ",", "."), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func looksLikeJSON(s string) bool {
	trimmed := strings.TrimSpace(s)
	return strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")
}
