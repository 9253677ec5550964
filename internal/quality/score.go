// Package quality computes the 0-100 data-quality score and flag set for
// a place record. Scoring is a pure function of the record: no I/O, no
// clock reads beyond the caller-supplied now.
package quality

import (
	"time"

	"github.com/placedir/refresh-cli/internal/model"
)

// Fixed completeness weights. They sum to 100 so a fully populated record
// scores exactly 100; each check contributes independently, which keeps
// the score monotonic in field presence.
const (
	weightRating = 25
	weightHours  = 20
	weightAbout  = 20
	weightFacts  = 15
	weightPhone  = 10
	weightPhotos = 10
)

// staleAfter marks enrichment data old enough to flag.
const staleAfter = 180 * 24 * time.Hour

// Score computes the completeness/trust score and the quality flags for a
// place. Flags are independent predicates over the same inputs, not
// thresholds on the score.
func Score(p model.Place, now time.Time) (int, []model.QualityFlag) {
	flags := model.NewFlagSet()
	score := 0

	if hasVerifiedRating(p) {
		score += weightRating
	}
	if p.AvgRating > 0 && p.RatingConfidence == model.RatingConfidenceLow {
		flags.Add(model.FlagUnverifiedRating)
	}
	if p.AvgRating > 0 && p.ReviewCount == 0 {
		flags.Add(model.FlagSuspectRating)
	}

	if len(p.OpeningHours) > 0 {
		score += weightHours
	} else {
		flags.Add(model.FlagMissingHours)
	}

	switch {
	case p.AboutText == "":
		flags.Add(model.FlagNoAboutText)
	case len(p.AboutText) < minScoredAboutLength:
		flags.Add(model.FlagThinAboutText)
		score += weightAbout / 2
	default:
		score += weightAbout
	}

	if len(p.Facts) > 0 {
		score += weightFacts
	}

	if p.Phone != "" {
		score += weightPhone
	} else {
		flags.Add(model.FlagMissingPhone)
	}

	if p.PhotoCount > 0 {
		score += weightPhotos
	} else {
		flags.Add(model.FlagNoPhotos)
	}

	if p.EnrichedAt != nil && now.Sub(*p.EnrichedAt) > staleAfter {
		flags.Add(model.FlagStaleData)
	}

	return score, flags.Sorted()
}

// minScoredAboutLength is the prose length below which about text earns
// only partial credit and a thin-content flag.
const minScoredAboutLength = 120

// hasVerifiedRating requires a rating we can stand behind: a value plus
// either agreement across sources or an authoritative single source.
func hasVerifiedRating(p model.Place) bool {
	if p.AvgRating <= 0 {
		return false
	}
	return p.RatingConfidence == model.RatingConfidenceHigh ||
		p.RatingConfidence == model.RatingConfidenceMedium
}
