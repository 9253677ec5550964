// Package worker drains the refresh queue: it claims jobs, gathers
// fragments for each place, runs enrichment, and records the outcome.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/placedir/refresh-cli/internal/enrich"
	"github.com/placedir/refresh-cli/internal/model"
	"github.com/placedir/refresh-cli/internal/place"
	"github.com/placedir/refresh-cli/internal/queue"
)

const (
	defaultConcurrency = 4
	defaultJobTimeout  = 2 * time.Minute
)

// BatchResult summarizes one RunBatch pass.
type BatchResult struct {
	Processed int
	Succeeded int
	Failed    int
}

// Worker processes refresh jobs.
type Worker struct {
	jobs         queue.Store
	places       place.Store
	source       FragmentSource
	orchestrator *enrich.Orchestrator

	concurrency int
	jobTimeout  time.Duration
}

// Option configures a Worker.
type Option func(*Worker)

// WithConcurrency bounds how many jobs run at once within a batch.
func WithConcurrency(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.concurrency = n
		}
	}
}

// WithJobTimeout bounds how long a single job may run.
func WithJobTimeout(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.jobTimeout = d
		}
	}
}

// New creates a Worker.
func New(jobs queue.Store, places place.Store, source FragmentSource, orch *enrich.Orchestrator, opts ...Option) *Worker {
	w := &Worker{
		jobs:         jobs,
		places:       places,
		source:       source,
		orchestrator: orch,
		concurrency:  defaultConcurrency,
		jobTimeout:   defaultJobTimeout,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// RunBatch claims up to limit jobs and processes them concurrently. A job
// failure never aborts the batch; each job's outcome is recorded in the
// queue independently.
func (w *Worker) RunBatch(ctx context.Context, limit int) (BatchResult, error) {
	claimed, err := w.jobs.ClaimBatch(ctx, limit)
	if err != nil {
		return BatchResult{}, eris.Wrap(err, "worker: claim batch")
	}
	if len(claimed) == 0 {
		return BatchResult{}, nil
	}

	var (
		mu     sync.Mutex
		result = BatchResult{Processed: len(claimed)}
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for _, job := range claimed {
		g.Go(func() error {
			ok := w.processJob(gCtx, job)
			mu.Lock()
			if ok {
				result.Succeeded++
			} else {
				result.Failed++
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	zap.L().Info("worker: batch complete",
		zap.Int("processed", result.Processed),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

// Run polls the queue until ctx is cancelled, sleeping pollInterval
// between empty batches.
func (w *Worker) Run(ctx context.Context, batchLimit int, pollInterval time.Duration) error {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	for {
		res, err := w.RunBatch(ctx, batchLimit)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			zap.L().Error("worker: batch failed", zap.Error(err))
		}
		if res.Processed > 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// processJob executes one claimed job end to end and reports whether it
// succeeded. The queue outcome is always recorded, even on panic-free
// failures, so the job never stays in_progress.
func (w *Worker) processJob(ctx context.Context, job model.RefreshJob) bool {
	jobCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	log := zap.L().With(
		zap.String("job_id", job.ID),
		zap.Int64("place_id", job.PlaceID),
		zap.String("reason", string(job.Reason)),
	)

	if err := w.enrichPlace(jobCtx, job); err != nil {
		log.Warn("worker: job failed", zap.Error(err))
		if markErr := w.jobs.MarkFailed(ctx, job.ID, err.Error()); markErr != nil {
			log.Error("worker: mark failed", zap.Error(markErr))
		}
		return false
	}

	if err := w.jobs.MarkDone(ctx, job.ID); err != nil {
		log.Error("worker: mark done", zap.Error(err))
		return false
	}
	log.Info("worker: job done")
	return true
}

func (w *Worker) enrichPlace(ctx context.Context, job model.RefreshJob) error {
	p, err := w.places.GetPlace(ctx, job.PlaceID)
	if err != nil {
		return eris.Wrapf(err, "worker: load place %d", job.PlaceID)
	}

	fragments, err := w.source.Fragments(ctx, *p)
	if err != nil {
		return eris.Wrapf(err, "worker: gather fragments for place %d", job.PlaceID)
	}

	update, err := w.orchestrator.Enrich(*p, fragments)
	if err != nil {
		if errors.Is(err, enrich.ErrNoUsableData) {
			return eris.Wrapf(err, "worker: place %d", job.PlaceID)
		}
		return eris.Wrapf(err, "worker: enrich place %d", job.PlaceID)
	}

	if err := w.places.ApplyEnrichment(ctx, job.PlaceID, update); err != nil {
		return eris.Wrapf(err, "worker: persist enrichment for place %d", job.PlaceID)
	}
	return nil
}
