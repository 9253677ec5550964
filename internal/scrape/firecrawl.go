package scrape

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/placedir/refresh-cli/internal/resilience"
	"github.com/placedir/refresh-cli/pkg/firecrawl"
)

// FirecrawlFetcher wraps a Firecrawl client as a Fetcher. It requests both
// markdown and raw HTML so structured data embedded in the page survives.
type FirecrawlFetcher struct {
	client  firecrawl.Client
	breaker *resilience.Breaker
	retry   resilience.Policy
}

// NewFirecrawlFetcher creates a FirecrawlFetcher.
func NewFirecrawlFetcher(client firecrawl.Client) *FirecrawlFetcher {
	return &FirecrawlFetcher{
		client:  client,
		breaker: resilience.NewBreaker(5, 60*time.Second),
		retry:   fetchRetryPolicy("firecrawl"),
	}
}

func (f *FirecrawlFetcher) Name() string { return "firecrawl" }

func (f *FirecrawlFetcher) Available() bool {
	return f.breaker.State() != resilience.StateOpen
}

func (f *FirecrawlFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	resp, err := resilience.Call(ctx, f.breaker, func(ctx context.Context) (*firecrawl.ScrapeResponse, error) {
		return resilience.Retry(ctx, f.retry, func(ctx context.Context) (*firecrawl.ScrapeResponse, error) {
			return f.client.Scrape(ctx, firecrawl.ScrapeRequest{
				URL:     url,
				Formats: []string{"markdown", "html"},
			})
		})
	})
	if err != nil {
		return nil, eris.Wrapf(err, "scrape: firecrawl fetch %s", url)
	}
	if !resp.Success || (resp.Data.Markdown == "" && resp.Data.HTML == "") {
		return nil, eris.Errorf("scrape: firecrawl returned no content for %s", url)
	}
	if Blocked(resp.Data.Markdown) {
		return nil, eris.Errorf("scrape: firecrawl got a bot wall for %s", url)
	}

	return &Page{
		URL:        url,
		Title:      resp.Data.Title,
		Content:    resp.Data.Markdown,
		HTML:       resp.Data.HTML,
		StatusCode: resp.Data.StatusCode,
		Source:     f.Name(),
	}, nil
}
