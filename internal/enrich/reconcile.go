package enrich

import (
	"math"

	"github.com/placedir/refresh-cli/internal/model"
	"github.com/placedir/refresh-cli/internal/parse"
)

// Candidate is one strategy's answer for a field, with the confidence the
// reconciliation policy assigns to its source.
type Candidate struct {
	Value      any
	Confidence float64
	Source     string
}

// Strategy extracts one field from the fetched input. Strategies are
// evaluated in order; the highest-confidence candidate above the floor
// wins, with earlier strategies breaking ties. Precedence therefore lives
// in one place instead of per-field if/else chains.
type Strategy struct {
	Name    string
	Extract func(in Input) *Candidate
}

// Input bundles everything strategies may look at: the raw fragments plus
// the schema.org data already lifted from them.
type Input struct {
	Fragments []model.Fragment
	Schema    []parse.SchemaOrgData
	cfg       Config
}

// fragmentsOf filters by kind, preserving fetch order.
func (in Input) fragmentsOf(kinds ...model.FragmentKind) []model.Fragment {
	var out []model.Fragment
	for _, f := range in.Fragments {
		for _, k := range kinds {
			if f.Kind == k {
				out = append(out, f)
				break
			}
		}
	}
	return out
}

// resolve runs the strategy list and picks the winner.
func resolve(strategies []Strategy, in Input) *Candidate {
	var best *Candidate
	for _, s := range strategies {
		c := s.Extract(in)
		if c == nil || c.Confidence < in.cfg.MinConfidence {
			continue
		}
		if best == nil || c.Confidence > best.Confidence {
			best = c
		}
	}
	return best
}

// hoursStrategies orders opening-hours extraction: structured schema.org
// data outranks the AI reader's text, which outranks the raw scrape.
func hoursStrategies() []Strategy {
	return []Strategy{
		{
			Name: "schema_org_hours",
			Extract: func(in Input) *Candidate {
				for _, sd := range in.Schema {
					if sched, ok := parse.HoursFromSpecs(sd.HoursSpecs); ok {
						return &Candidate{Value: sched, Confidence: in.cfg.confidenceFor(model.FragmentSchemaOrg), Source: "schema_org"}
					}
					for _, shorthand := range sd.OpeningHours {
						if sched, ok := parse.ParseHours(expandDayCodes(shorthand)); ok {
							return &Candidate{Value: sched, Confidence: in.cfg.confidenceFor(model.FragmentSchemaOrg), Source: "schema_org"}
						}
					}
				}
				return nil
			},
		},
		{
			Name: "text_hours",
			Extract: func(in Input) *Candidate {
				for _, f := range in.fragmentsOf(model.FragmentAIReader, model.FragmentWebsite) {
					if sched, ok := parse.ParseHours(f.Content); ok {
						return &Candidate{Value: sched, Confidence: in.cfg.confidenceFor(f.Kind), Source: f.Source}
					}
				}
				return nil
			},
		},
	}
}

// aboutStrategies prefers AI-summarized prose over raw scraped content.
// Thin results are returned anyway at reduced confidence so the caller
// can flag rather than silently drop a marginal source.
func aboutStrategies() []Strategy {
	extract := func(kind model.FragmentKind) func(in Input) *Candidate {
		return func(in Input) *Candidate {
			for _, f := range in.fragmentsOf(kind) {
				res := parse.ExtractAbout(f.Content)
				if res.Text == "" {
					continue
				}
				conf := in.cfg.confidenceFor(kind)
				if res.Thin {
					conf /= 2
				}
				return &Candidate{Value: res, Confidence: conf, Source: f.Source}
			}
			return nil
		}
	}
	return []Strategy{
		{Name: "ai_about", Extract: extract(model.FragmentAIReader)},
		{Name: "scraped_about", Extract: extract(model.FragmentWebsite)},
	}
}

// ratingOutcome is the reconciled rating field set.
type ratingOutcome struct {
	Value      float64
	Count      int
	Source     string
	Confidence model.RatingConfidence
	// Rejected counts observations discarded by validation, surfaced as
	// a suspect-rating flag rather than silently dropped.
	Rejected int
}

// reconcileRatings gathers every rating observation across sources and
// applies the agreement policy: explicit numeric sources beat
// text-derived estimates; agreement within the configured delta across
// two or more sources is high confidence, a lone authoritative source is
// medium, text inference alone is low.
func reconcileRatings(in Input) *ratingOutcome {
	var observations []model.RatingObservation
	rejected := 0

	for _, f := range in.fragmentsOf(model.FragmentRatingFeed) {
		if f.Rating == nil {
			continue
		}
		if !parse.ValidRating(f.Rating) {
			rejected++
			continue
		}
		observations = append(observations, *f.Rating)
	}
	for _, sd := range in.Schema {
		if sd.Rating != nil {
			observations = append(observations, *sd.Rating)
		} else if sd.RatingRejected {
			rejected++
		}
	}
	for _, f := range in.fragmentsOf(model.FragmentAIReader, model.FragmentWebsite) {
		obs, ok := parse.ParseRating(f.Content, f.Source)
		if ok {
			observations = append(observations, *obs)
		} else if obs != nil {
			rejected++
		}
	}

	// A count wildly out of line with its peers is a unit error even
	// when under the absolute cap.
	observations, implausible := dropImplausibleCounts(observations)
	rejected += implausible

	if len(observations) == 0 {
		if rejected > 0 {
			return &ratingOutcome{Rejected: rejected}
		}
		return nil
	}

	winner := pickRatingWinner(observations)
	out := &ratingOutcome{
		Value:    winner.Value,
		Count:    winner.Count,
		Source:   winner.Source,
		Rejected: rejected,
	}

	explicitSources := 0
	agreeing := 0
	for _, obs := range observations {
		if obs.Explicit {
			explicitSources++
		}
		if math.Abs(obs.Value-winner.Value) <= in.cfg.RatingAgreementDelta {
			agreeing++
		}
	}

	switch {
	case agreeing >= 2 && explicitSources >= 1:
		out.Confidence = model.RatingConfidenceHigh
	case winner.Explicit:
		out.Confidence = model.RatingConfidenceMedium
	default:
		out.Confidence = model.RatingConfidenceLow
	}
	return out
}

// pickRatingWinner prefers explicit observations with review counts, then
// explicit ones, then whatever text inference produced. Within a class
// the larger review count wins.
func pickRatingWinner(observations []model.RatingObservation) model.RatingObservation {
	best := observations[0]
	for _, obs := range observations[1:] {
		if ratingClass(obs) > ratingClass(best) {
			best = obs
			continue
		}
		if ratingClass(obs) == ratingClass(best) && obs.Count > best.Count {
			best = obs
		}
	}
	return best
}

func ratingClass(obs model.RatingObservation) int {
	switch {
	case obs.Explicit && obs.Count > 0:
		return 2
	case obs.Explicit:
		return 1
	default:
		return 0
	}
}

// dropImplausibleCounts rejects observations whose review count is at
// least 10x the largest corroborated peer count, which is how shifted
// decimal points present in practice.
func dropImplausibleCounts(observations []model.RatingObservation) ([]model.RatingObservation, int) {
	if len(observations) < 2 {
		return observations, 0
	}
	var kept []model.RatingObservation
	rejected := 0
	for i, obs := range observations {
		maxPeer := 0
		for j, peer := range observations {
			if i != j && peer.Count > maxPeer {
				maxPeer = peer.Count
			}
		}
		if maxPeer > 0 && obs.Count >= 1000 && obs.Count >= 10*maxPeer {
			rejected++
			continue
		}
		kept = append(kept, obs)
	}
	return kept, rejected
}

// expandDayCodes turns schema.org two-letter day codes into names the
// free-text parser understands ("Mo-Fr 09:00-17:00" → "mon-fri ...").
func expandDayCodes(s string) string {
	replacer := map[string]string{
		"Mo": "mon", "Tu": "tue", "We": "wed", "Th": "thu",
		"Fr": "fri", "Sa": "sat", "Su": "sun",
	}
	out := s
	for code, name := range replacer {
		out = replaceWord(out, code, name)
	}
	return out
}

func replaceWord(s, old, new string) string {
	var b []byte
	for i := 0; i < len(s); {
		if i+len(old) <= len(s) && s[i:i+len(old)] == old &&
			(i == 0 || !isLetter(s[i-1])) &&
			(i+len(old) == len(s) || !isLetter(s[i+len(old)])) {
			b = append(b, new...)
			i += len(old)
			continue
		}
		b = append(b, s[i])
		i++
	}
	return string(b)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
