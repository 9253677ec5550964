package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/placedir/refresh-cli/internal/enrich"
	"github.com/placedir/refresh-cli/internal/model"
	"github.com/placedir/refresh-cli/internal/place"
	"github.com/placedir/refresh-cli/internal/queue"
)

// fakeQueue hands out a fixed claim and records outcome calls.
type fakeQueue struct {
	queue.Store

	mu      sync.Mutex
	claimed []model.RefreshJob
	done    []string
	failed  map[string]string
}

func newFakeQueue(jobs ...model.RefreshJob) *fakeQueue {
	return &fakeQueue{claimed: jobs, failed: make(map[string]string)}
}

func (q *fakeQueue) ClaimBatch(ctx context.Context, limit int) ([]model.RefreshJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if limit > len(q.claimed) {
		limit = len(q.claimed)
	}
	batch := q.claimed[:limit]
	q.claimed = q.claimed[limit:]
	return batch, nil
}

func (q *fakeQueue) MarkDone(ctx context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.done = append(q.done, jobID)
	return nil
}

func (q *fakeQueue) MarkFailed(ctx context.Context, jobID, jobErr string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.failed[jobID] = jobErr
	return nil
}

// fakePlaces serves places from a map and records ApplyEnrichment calls.
type fakePlaces struct {
	place.Store

	mu      sync.Mutex
	records map[int64]model.Place
	applied map[int64]model.PlaceUpdate
}

func newFakePlaces(places ...model.Place) *fakePlaces {
	f := &fakePlaces{records: make(map[int64]model.Place), applied: make(map[int64]model.PlaceUpdate)}
	for _, p := range places {
		f.records[p.ID] = p
	}
	return f
}

func (f *fakePlaces) GetPlace(ctx context.Context, id int64) (*model.Place, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.records[id]
	if !ok {
		return nil, place.ErrPlaceNotFound
	}
	return &p, nil
}

func (f *fakePlaces) ApplyEnrichment(ctx context.Context, placeID int64, update model.PlaceUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied[placeID] = update
	return nil
}

// fragmentsByPlace returns canned fragments keyed by place id; ids with a
// nil entry simulate a total source failure.
type fragmentsByPlace map[int64][]model.Fragment

func (s fragmentsByPlace) Fragments(ctx context.Context, p model.Place) ([]model.Fragment, error) {
	frags, ok := s[p.ID]
	if !ok {
		return nil, eris.New("source unreachable")
	}
	return frags, nil
}

func claimedJob(id string, placeID int64) model.RefreshJob {
	return model.RefreshJob{
		ID:        id,
		PlaceID:   placeID,
		Reason:    model.ReasonManual,
		Priority:  100,
		Status:    model.StatusInProgress,
		CreatedAt: time.Now().UTC(),
	}
}

func ratingFragment(value float64, count int) model.Fragment {
	return model.Fragment{
		Kind:   model.FragmentRatingFeed,
		Source: "rating_feed",
		Rating: &model.RatingObservation{Value: value, Count: count, Source: "rating_feed", Explicit: true},
	}
}

func TestRunBatchSuccess(t *testing.T) {
	jobs := newFakeQueue(claimedJob("job-1", 42))
	places := newFakePlaces(model.Place{ID: 42, Slug: "garcia", Name: "Garcia & Sons"})
	source := fragmentsByPlace{42: {ratingFragment(4.5, 120)}}

	w := New(jobs, places, source, enrich.New(enrich.DefaultConfig()))
	res, err := w.RunBatch(context.Background(), 10)
	require.NoError(t, err)

	assert.Equal(t, BatchResult{Processed: 1, Succeeded: 1}, res)
	assert.Equal(t, []string{"job-1"}, jobs.done)
	update, ok := places.applied[42]
	require.True(t, ok)
	assert.InDelta(t, 4.5, update.AvgRating, 0.001)
}

func TestRunBatchEmptyQueue(t *testing.T) {
	w := New(newFakeQueue(), newFakePlaces(), fragmentsByPlace{}, enrich.New(enrich.DefaultConfig()))

	res, err := w.RunBatch(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, BatchResult{}, res)
}

func TestRunBatchIsolatesFailures(t *testing.T) {
	jobs := newFakeQueue(
		claimedJob("job-ok", 1),
		claimedJob("job-bad", 2),
		claimedJob("job-missing", 3),
	)
	places := newFakePlaces(
		model.Place{ID: 1, Slug: "one", Name: "One"},
		model.Place{ID: 2, Slug: "two", Name: "Two"},
		// Place 3 absent; its job must fail without touching the others.
	)
	source := fragmentsByPlace{1: {ratingFragment(4.0, 30)}}

	w := New(jobs, places, source, enrich.New(enrich.DefaultConfig()), WithConcurrency(2))
	res, err := w.RunBatch(context.Background(), 10)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Processed)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, []string{"job-ok"}, jobs.done)
	assert.Contains(t, jobs.failed["job-bad"], "source unreachable")
	assert.Contains(t, jobs.failed["job-missing"], "not found")
	_, applied := places.applied[2]
	assert.False(t, applied)
}

func TestRunBatchNoUsableData(t *testing.T) {
	jobs := newFakeQueue(claimedJob("job-1", 42))
	places := newFakePlaces(model.Place{ID: 42, Slug: "garcia", Name: "Garcia & Sons"})
	source := fragmentsByPlace{42: nil}

	w := New(jobs, places, source, enrich.New(enrich.DefaultConfig()))
	res, err := w.RunBatch(context.Background(), 10)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Failed)
	assert.Contains(t, jobs.failed["job-1"], "no usable data")
	assert.Empty(t, places.applied)
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := New(newFakeQueue(), newFakePlaces(), fragmentsByPlace{}, enrich.New(enrich.DefaultConfig()))
	err := w.Run(ctx, 10, 10*time.Millisecond)
	assert.ErrorIs(t, err, context.Canceled)
}
