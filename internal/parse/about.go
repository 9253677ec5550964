package parse

import (
	"regexp"
	"strings"
)

// Length window for a usable about section. Below the minimum the text is
// unusable filler; above the maximum we keep the leading prose only.
const (
	MinAboutLength = 120
	MaxAboutLength = 2000
)

// AboutResult is the outcome of prose extraction from page content.
type AboutResult struct {
	Text        string
	Thin        bool    // below the minimum length window
	LinkDensity float64 // share of characters inside markdown links
}

var (
	markdownLinkRe  = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	markdownImageRe = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	headingRe       = regexp.MustCompile(`^#{1,6}\s`)
	bulletRe        = regexp.MustCompile(`^\s*[-*+•]\s`)
)

// boilerplate phrases that mark navigation, legal and cookie lines.
var boilerplateMarkers = []string{
	"cookie", "privacy policy", "terms of service", "terms and conditions",
	"all rights reserved", "©", "skip to content", "sign in", "log in",
	"newsletter", "subscribe", "follow us", "impressum",
}

// ExtractAbout isolates a prose block plausibly describing the business
// from raw page or markdown content. Navigation, headings, bullets and
// legal boilerplate are dropped; what remains is windowed to the about
// length limits. Thin is set when the surviving prose is below the
// minimum, so callers flag instead of storing filler.
func ExtractAbout(content string) AboutResult {
	totalLen := 0
	linkLen := 0

	var prose []string
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		totalLen += len(trimmed)
		for _, m := range markdownLinkRe.FindAllString(trimmed, -1) {
			linkLen += len(m)
		}

		if headingRe.MatchString(trimmed) || bulletRe.MatchString(trimmed) {
			continue
		}
		if isBoilerplate(trimmed) {
			continue
		}

		cleaned := markdownImageRe.ReplaceAllString(trimmed, "")
		cleaned = markdownLinkRe.ReplaceAllString(cleaned, "$1")
		cleaned = strings.TrimSpace(cleaned)
		if len(cleaned) < 40 {
			// Too short to be a prose sentence; nav crumbs and buttons.
			continue
		}
		if !strings.ContainsAny(cleaned, ".!?") {
			continue
		}
		prose = append(prose, cleaned)
	}

	result := AboutResult{}
	if totalLen > 0 {
		result.LinkDensity = float64(linkLen) / float64(totalLen)
	}

	text := strings.Join(prose, "\n\n")
	if len(text) > MaxAboutLength {
		text = truncateAtBoundary(text, MaxAboutLength)
	}
	result.Text = text
	result.Thin = len(text) < MinAboutLength

	// Mostly-links content is low quality even when long enough.
	if result.LinkDensity > 0.5 {
		result.Thin = true
	}
	return result
}

func isBoilerplate(line string) bool {
	lower := strings.ToLower(line)
	for _, marker := range boilerplateMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// truncateAtBoundary cuts at the last sentence end before the limit,
// falling back to the last space.
func truncateAtBoundary(s string, limit int) string {
	cut := s[:limit]
	if idx := strings.LastIndexAny(cut, ".!?"); idx > limit/2 {
		return strings.TrimSpace(cut[:idx+1])
	}
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		return strings.TrimSpace(cut[:idx])
	}
	return cut
}
