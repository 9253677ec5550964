package parse

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/placedir/refresh-cli/internal/model"
)

// MaxPlausibleReviewCount caps review counts accepted at parse time.
// Feeds occasionally report counts with a shifted decimal point (a
// "69,000 reviews" barbershop); anything past this cap is a unit error
// and the observation is rejected rather than corrected.
const MaxPlausibleReviewCount = 100_000

var (
	// "4.5 stars", "rated 4.6/5", "4,3 von 5"
	ratingValueRe = regexp.MustCompile(`(?i)(?:\b|^)(\d(?:[.,]\d)?)\s*(?:/\s*5|\s*(?:out of|von|sur)\s*5|\s*stars?|\s*sterne|★)`)
	// "(120 reviews)", "120 Bewertungen", "based on 85 ratings"
	reviewCountRe = regexp.MustCompile(`(?i)(\d[\d.,]*)\s*(?:reviews?|ratings?|bewertungen|avis)`)
	// "around 4 stars", "about four stars" style hedges
	hedgeRe = regexp.MustCompile(`(?i)\b(around|about|approximately|roughly|circa|~)\b`)
)

// ParseRating extracts a (value, count) rating observation from free text
// or a structured snippet. Non-numeric and out-of-range values are
// rejected, never coerced; a rejected observation is still returned with
// ok=false so callers can count it instead of losing the rejection.
// Hedged phrasings ("around 4 stars") yield a non-explicit observation
// that reconciliation treats as low confidence.
func ParseRating(text, source string) (*model.RatingObservation, bool) {
	m := ratingValueRe.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}

	value, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil {
		return nil, false
	}

	count := 0
	if cm := reviewCountRe.FindStringSubmatch(text); cm != nil {
		digits := strings.NewReplacer(",", "", ".", "").Replace(cm[1])
		if n, err := strconv.Atoi(digits); err == nil {
			count = n
		}
	}

	obs := &model.RatingObservation{
		Value:    value,
		Count:    count,
		Source:   source,
		Explicit: !hedgeRe.MatchString(text),
	}
	if !ValidRating(obs) {
		return obs, false
	}
	return obs, true
}

// ValidRating checks an observation against the allowed rating range and
// the review-count plausibility cap.
func ValidRating(obs *model.RatingObservation) bool {
	if obs == nil {
		return false
	}
	if obs.Value < 0 || obs.Value > 5 {
		return false
	}
	if obs.Count < 0 || obs.Count > MaxPlausibleReviewCount {
		return false
	}
	return true
}
