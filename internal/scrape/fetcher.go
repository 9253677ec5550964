// Package scrape provides chained page fetching for place websites.
package scrape

import (
	"context"
)

// Page holds a fetched page with its source.
type Page struct {
	URL        string
	Title      string
	Content    string
	HTML       string
	StatusCode int
	Source     string // e.g. "jina", "firecrawl"
}

// Fetcher retrieves a single URL and returns its content.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
	Name() string
	// Available reports whether the fetcher is currently usable. A fetcher
	// with an open circuit breaker reports false.
	Available() bool
}
