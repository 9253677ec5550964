package worker

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/placedir/refresh-cli/internal/model"
	"github.com/placedir/refresh-cli/internal/scrape"
)

type stubFetcher struct {
	page *scrape.Page
	err  error
}

func (f *stubFetcher) Fetch(ctx context.Context, url string) (*scrape.Page, error) {
	return f.page, f.err
}

func (f *stubFetcher) Name() string    { return "stub" }
func (f *stubFetcher) Available() bool { return true }

func TestWebSourceSkipsPlacesWithoutWebsite(t *testing.T) {
	s := NewWebSource(scrape.NewChain(&stubFetcher{err: eris.New("must not be called")}))

	frags, err := s.Fragments(context.Background(), model.Place{ID: 1, Name: "No Site"})
	require.NoError(t, err)
	assert.Nil(t, frags)
}

func TestWebSourceJinaContentBecomesAIReaderFragment(t *testing.T) {
	s := NewWebSource(scrape.NewChain(&stubFetcher{page: &scrape.Page{
		URL:     "https://garcia.example",
		Content: "## About\nA neighborhood barbershop.",
		Source:  "jina",
	}}))

	frags, err := s.Fragments(context.Background(), model.Place{ID: 42, Website: "https://garcia.example"})
	require.NoError(t, err)
	require.Len(t, frags, 1)
	assert.Equal(t, model.FragmentAIReader, frags[0].Kind)
	assert.Equal(t, "jina", frags[0].Source)
}

func TestWebSourceHTMLYieldsSchemaFragment(t *testing.T) {
	s := NewWebSource(scrape.NewChain(&stubFetcher{page: &scrape.Page{
		URL:     "https://garcia.example",
		Content: "# Garcia & Sons",
		HTML:    `<script type="application/ld+json">{"@type":"LocalBusiness"}</script>`,
		Source:  "firecrawl",
	}}))

	frags, err := s.Fragments(context.Background(), model.Place{ID: 42, Website: "https://garcia.example"})
	require.NoError(t, err)
	require.Len(t, frags, 2)
	assert.Equal(t, model.FragmentWebsite, frags[0].Kind)
	assert.Equal(t, model.FragmentSchemaOrg, frags[1].Kind)
	assert.Contains(t, frags[1].Content, "ld+json")
}

func TestMultiSourceSkipsFailingSource(t *testing.T) {
	broken := fragmentsByPlace{}
	working := fragmentsByPlace{42: {ratingFragment(4.5, 120)}}

	m := NewMultiSource(broken, working)
	frags, err := m.Fragments(context.Background(), model.Place{ID: 42})
	require.NoError(t, err)
	require.Len(t, frags, 1)
	assert.Equal(t, model.FragmentRatingFeed, frags[0].Kind)
}

func TestMultiSourceTotalMissReturnsError(t *testing.T) {
	m := NewMultiSource(fragmentsByPlace{}, fragmentsByPlace{})
	_, err := m.Fragments(context.Background(), model.Place{ID: 42})
	assert.Error(t, err)
}
