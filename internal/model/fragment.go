package model

// FragmentKind tags where a raw fragment came from. The kind decides
// which parsers run and how much weight reconciliation gives the result.
type FragmentKind string

const (
	// FragmentWebsite is raw page content scraped from the place's site.
	FragmentWebsite FragmentKind = "website"
	// FragmentAIReader is summarized/rewritten text from an AI reader.
	FragmentAIReader FragmentKind = "ai_reader"
	// FragmentSchemaOrg is JSON-LD structured data lifted from the page.
	FragmentSchemaOrg FragmentKind = "schema_org"
	// FragmentRatingFeed is an observation from a third-party rating feed.
	FragmentRatingFeed FragmentKind = "rating_feed"
)

// Fragment is one raw piece of externally fetched content for a place.
// Fragments are transient: they exist only for the duration of a refresh
// job and are folded into the place record, never persisted standalone.
type Fragment struct {
	Kind    FragmentKind `json:"kind"`
	Source  string       `json:"source"`
	URL     string       `json:"url,omitempty"`
	Content string       `json:"content,omitempty"`

	// Rating is set for rating_feed fragments.
	Rating *RatingObservation `json:"rating,omitempty"`
}

// RatingObservation is a single (value, count) rating report from one
// source. Explicit distinguishes a numeric feed value from a number
// inferred out of free text.
type RatingObservation struct {
	Value    float64 `json:"value"`
	Count    int     `json:"count"`
	Source   string  `json:"source"`
	Explicit bool    `json:"explicit"`
}
