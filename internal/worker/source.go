package worker

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/placedir/refresh-cli/internal/model"
	"github.com/placedir/refresh-cli/internal/scrape"
)

// FragmentSource gathers raw content fragments for a place from the
// available fetch sources.
type FragmentSource interface {
	Fragments(ctx context.Context, place model.Place) ([]model.Fragment, error)
}

// WebSource fetches the place's website through the fetcher chain. The
// markdown body becomes a website fragment; when the fetcher also returns
// raw HTML, that is emitted as a separate fragment so embedded structured
// data can be extracted from it.
type WebSource struct {
	chain *scrape.Chain
}

// NewWebSource creates a WebSource backed by the given chain.
func NewWebSource(chain *scrape.Chain) *WebSource {
	return &WebSource{chain: chain}
}

func (s *WebSource) Fragments(ctx context.Context, place model.Place) ([]model.Fragment, error) {
	if place.Website == "" {
		return nil, nil
	}

	page, err := s.chain.Fetch(ctx, place.Website)
	if err != nil {
		return nil, eris.Wrapf(err, "worker: fetch website for place %d", place.ID)
	}

	var fragments []model.Fragment
	if page.Content != "" {
		kind := model.FragmentWebsite
		if page.Source == "jina" {
			kind = model.FragmentAIReader
		}
		fragments = append(fragments, model.Fragment{
			Kind:    kind,
			Source:  page.Source,
			URL:     page.URL,
			Content: page.Content,
		})
	}
	if page.HTML != "" {
		fragments = append(fragments, model.Fragment{
			Kind:    model.FragmentSchemaOrg,
			Source:  page.Source,
			URL:     page.URL,
			Content: page.HTML,
		})
	}

	zap.L().Debug("worker: fetched website fragments",
		zap.Int64("place_id", place.ID),
		zap.String("source", page.Source),
		zap.Int("fragments", len(fragments)),
	)
	return fragments, nil
}

// MultiSource fans out to several sources and concatenates their fragments.
// A failing source is logged and skipped; only a total miss is an error.
type MultiSource struct {
	sources []FragmentSource
}

// NewMultiSource combines sources. Order is preserved in the output.
func NewMultiSource(sources ...FragmentSource) *MultiSource {
	return &MultiSource{sources: sources}
}

func (m *MultiSource) Fragments(ctx context.Context, place model.Place) ([]model.Fragment, error) {
	var (
		fragments []model.Fragment
		lastErr   error
	)
	for _, s := range m.sources {
		frags, err := s.Fragments(ctx, place)
		if err != nil {
			zap.L().Warn("worker: fragment source failed",
				zap.Int64("place_id", place.ID),
				zap.Error(err),
			)
			lastErr = err
			continue
		}
		fragments = append(fragments, frags...)
	}
	if len(fragments) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return fragments, nil
}
