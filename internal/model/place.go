package model

import "time"

// RatingConfidence grades how much we trust a reconciled rating.
type RatingConfidence string

const (
	RatingConfidenceHigh   RatingConfidence = "high"
	RatingConfidenceMedium RatingConfidence = "medium"
	RatingConfidenceLow    RatingConfidence = "low"
)

// Place is a directory listing subject to periodic data refresh.
// Identity fields (ID, Slug) are owned by the directory ingestion path;
// the refresh pipeline only ever touches the enrichable fields.
type Place struct {
	ID      int64  `json:"id"`
	Slug    string `json:"slug"`
	Name    string `json:"name"`
	Website string `json:"website,omitempty"`
	City    string `json:"city,omitempty"`

	// Enrichable fields, written only by the enrichment orchestrator.
	AvgRating        float64           `json:"avg_rating,omitempty"`
	ReviewCount      int               `json:"review_count,omitempty"`
	RatingSource     string            `json:"rating_source,omitempty"`
	RatingConfidence RatingConfidence  `json:"rating_confidence,omitempty"`
	OpeningHours     WeekSchedule      `json:"opening_hours,omitempty"`
	AboutText        string            `json:"about_text,omitempty"`
	Phone            string            `json:"phone,omitempty"`
	Facts            map[string]string `json:"facts,omitempty"`
	PhotoCount       int               `json:"photo_count,omitempty"`
	QualityScore     int               `json:"quality_score"`
	QualityFlags     []QualityFlag     `json:"quality_flags,omitempty"`

	EnrichedAt *time.Time `json:"enriched_at,omitempty"`
}

// PlaceUpdate is the reconciled field set an enrichment run merges into a
// place. Zero-valued fields are "nothing learned" and leave the stored
// value alone; Facts replaces the whole set when non-nil.
type PlaceUpdate struct {
	AvgRating        float64           `json:"avg_rating,omitempty"`
	ReviewCount      int               `json:"review_count,omitempty"`
	RatingSource     string            `json:"rating_source,omitempty"`
	RatingConfidence RatingConfidence  `json:"rating_confidence,omitempty"`
	OpeningHours     WeekSchedule      `json:"opening_hours,omitempty"`
	AboutText        string            `json:"about_text,omitempty"`
	Phone            string            `json:"phone,omitempty"`
	Facts            map[string]string `json:"facts,omitempty"`
	QualityScore     int               `json:"quality_score"`
	QualityFlags     []QualityFlag     `json:"quality_flags,omitempty"`
}

// Apply merges an update into a copy of the place and returns it.
// Stored values survive when the update learned nothing for a field.
func (p Place) Apply(u PlaceUpdate, now time.Time) Place {
	if u.AvgRating > 0 {
		p.AvgRating = u.AvgRating
		p.ReviewCount = u.ReviewCount
		p.RatingSource = u.RatingSource
		p.RatingConfidence = u.RatingConfidence
	}
	if len(u.OpeningHours) > 0 {
		p.OpeningHours = u.OpeningHours
	}
	if u.AboutText != "" {
		p.AboutText = u.AboutText
	}
	if u.Phone != "" {
		p.Phone = u.Phone
	}
	if u.Facts != nil {
		p.Facts = u.Facts
	}
	p.QualityScore = u.QualityScore
	p.QualityFlags = u.QualityFlags
	p.EnrichedAt = &now
	return p
}
