package scrape

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Chain tries fetchers in priority order, returning the first success.
// Fetchers whose circuit breaker is open are skipped.
type Chain struct {
	fetchers []Fetcher
}

// NewChain creates a Chain. Fetchers are tried in the given order.
func NewChain(fetchers ...Fetcher) *Chain {
	return &Chain{fetchers: fetchers}
}

// Fetch tries each fetcher in order for a single URL and returns the first
// successful page, or an error if every fetcher fails.
func (c *Chain) Fetch(ctx context.Context, url string) (*Page, error) {
	var lastErr error
	for _, f := range c.fetchers {
		if !f.Available() {
			continue
		}
		page, err := f.Fetch(ctx, url)
		if err == nil && page != nil {
			return page, nil
		}
		if err != nil {
			zap.L().Debug("scrape: fetcher failed, trying next",
				zap.String("fetcher", f.Name()),
				zap.String("url", url),
				zap.Error(err),
			)
			lastErr = err
		}
		if ctx.Err() != nil {
			break
		}
	}
	if lastErr != nil {
		return nil, eris.Wrap(lastErr, "scrape: all fetchers failed")
	}
	return nil, eris.Errorf("scrape: no available fetcher for url: %s", url)
}
