package scrape

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	name      string
	available bool
	page      *Page
	err       error
	calls     int
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	f.calls++
	return f.page, f.err
}

func (f *fakeFetcher) Name() string    { return f.name }
func (f *fakeFetcher) Available() bool { return f.available }

func TestChainFirstFetcherWins(t *testing.T) {
	first := &fakeFetcher{name: "jina", available: true, page: &Page{Content: "body", Source: "jina"}}
	second := &fakeFetcher{name: "firecrawl", available: true, page: &Page{Content: "other"}}
	c := NewChain(first, second)

	page, err := c.Fetch(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, "jina", page.Source)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 0, second.calls)
}

func TestChainFallsBackOnFailure(t *testing.T) {
	first := &fakeFetcher{name: "jina", available: true, err: eris.New("rate limited")}
	second := &fakeFetcher{name: "firecrawl", available: true, page: &Page{Content: "body", Source: "firecrawl"}}
	c := NewChain(first, second)

	page, err := c.Fetch(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, "firecrawl", page.Source)
	assert.Equal(t, 1, first.calls)
}

func TestChainSkipsUnavailableFetcher(t *testing.T) {
	tripped := &fakeFetcher{name: "jina", available: false, err: eris.New("open breaker")}
	backup := &fakeFetcher{name: "firecrawl", available: true, page: &Page{Content: "body"}}
	c := NewChain(tripped, backup)

	_, err := c.Fetch(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, 0, tripped.calls)
	assert.Equal(t, 1, backup.calls)
}

func TestChainAllFetchersFail(t *testing.T) {
	first := &fakeFetcher{name: "jina", available: true, err: eris.New("timeout")}
	second := &fakeFetcher{name: "firecrawl", available: true, err: eris.New("bad gateway")}
	c := NewChain(first, second)

	_, err := c.Fetch(context.Background(), "https://example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all fetchers failed")
	assert.Contains(t, err.Error(), "bad gateway")
}

func TestChainNoAvailableFetcher(t *testing.T) {
	c := NewChain(&fakeFetcher{name: "jina", available: false})

	_, err := c.Fetch(context.Background(), "https://example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no available fetcher")
}

func TestChainStopsAfterContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	first := &fakeFetcher{name: "jina", available: true, err: eris.New("slow death")}
	second := &fakeFetcher{name: "firecrawl", available: true, page: &Page{Content: "body"}}
	c := NewChain(first, second)

	cancel()
	_, err := c.Fetch(ctx, "https://example.com")
	require.Error(t, err)
	assert.Equal(t, 0, second.calls)
}
