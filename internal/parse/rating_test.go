package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/placedir/refresh-cli/internal/model"
)

func TestParseRatingExplicitWithCount(t *testing.T) {
	obs, ok := ParseRating("Rated 4.5/5 based on 120 reviews", "rating_feed")
	require.True(t, ok)

	assert.InDelta(t, 4.5, obs.Value, 0.001)
	assert.Equal(t, 120, obs.Count)
	assert.Equal(t, "rating_feed", obs.Source)
	assert.True(t, obs.Explicit)
}

func TestParseRatingStarsPhrase(t *testing.T) {
	obs, ok := ParseRating("Customers give us 4.6 stars", "website")
	require.True(t, ok)
	assert.InDelta(t, 4.6, obs.Value, 0.001)
	assert.Equal(t, 0, obs.Count)
}

func TestParseRatingGermanDecimalComma(t *testing.T) {
	obs, ok := ParseRating("4,3 von 5 (85 Bewertungen)", "website")
	require.True(t, ok)
	assert.InDelta(t, 4.3, obs.Value, 0.001)
	assert.Equal(t, 85, obs.Count)
}

func TestParseRatingHedgedIsNotExplicit(t *testing.T) {
	obs, ok := ParseRating("around 4 stars according to locals", "website")
	require.True(t, ok)
	assert.False(t, obs.Explicit)
}

func TestParseRatingRejectsOutOfRange(t *testing.T) {
	// The rejected observation comes back so callers can count it.
	obs, ok := ParseRating("9.5 stars!!", "website")
	assert.False(t, ok)
	require.NotNil(t, obs)
	assert.InDelta(t, 9.5, obs.Value, 0.001)
}

func TestParseRatingRejectsImplausibleCount(t *testing.T) {
	// Shifted-decimal feed bug: a barbershop does not have 690,000 reviews.
	obs, ok := ParseRating("4.8/5 from 690,000 reviews", "rating_feed")
	assert.False(t, ok)
	assert.NotNil(t, obs)
}

func TestParseRatingNoNumber(t *testing.T) {
	_, ok := ParseRating("our customers love us", "website")
	assert.False(t, ok)
}

func TestValidRating(t *testing.T) {
	assert.False(t, ValidRating(nil))
	assert.False(t, ValidRating(&model.RatingObservation{Value: 5.1}))
	assert.False(t, ValidRating(&model.RatingObservation{Value: -0.1}))
	assert.False(t, ValidRating(&model.RatingObservation{Value: 4.0, Count: MaxPlausibleReviewCount + 1}))
	assert.True(t, ValidRating(&model.RatingObservation{Value: 4.0, Count: MaxPlausibleReviewCount}))
}
