// Package queue is the durable refresh-job queue: priority-ordered,
// de-duplicated per place, with atomic claims so concurrent workers never
// double-process a job.
package queue

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/placedir/refresh-cli/internal/model"
)

// ErrInvalidPlace means an enqueue referenced a place id that does not
// resolve. Not retryable.
var ErrInvalidPlace = eris.New("queue: place does not exist")

// ErrJobNotFound means the referenced job id is unknown or not in the
// state the operation requires.
var ErrJobNotFound = eris.New("queue: job not found")

// DefaultMaxAttempts bounds retries before a job goes terminal.
const DefaultMaxAttempts = 3

// DefaultClaimTimeout is how long a job may sit in_progress before the
// sweep assumes the worker died and recovers it.
const DefaultClaimTimeout = 15 * time.Minute

// EnqueueResult reports the job backing an enqueue call. IsNew is false
// when an active job for the place already existed; in that case its
// priority was raised if the new request outranked it.
type EnqueueResult struct {
	JobID string `json:"job_id"`
	IsNew bool   `json:"is_new"`
}

// Stats is the queue depth per status.
type Stats struct {
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Done       int `json:"done"`
	Failed     int `json:"failed"`
}

// Store is the durable queue contract. Claim semantics are atomic
// compare-and-swap transitions: a job returned by ClaimBatch is already
// in_progress and will not be handed to a second caller.
type Store interface {
	Enqueue(ctx context.Context, placeID int64, reason model.RefreshReason, priority int) (EnqueueResult, error)
	ClaimBatch(ctx context.Context, limit int) ([]model.RefreshJob, error)
	MarkDone(ctx context.Context, jobID string) error
	MarkFailed(ctx context.Context, jobID string, jobErr string) error
	// SweepStale recovers jobs stuck in_progress past the claim timeout
	// back to pending. Returns how many were recovered.
	SweepStale(ctx context.Context, claimTimeout time.Duration) (int, error)
	GetJob(ctx context.Context, jobID string) (*model.RefreshJob, error)
	Stats(ctx context.Context) (Stats, error)
	Migrate(ctx context.Context) error
	Close() error
}

// Outcome is the result of executing a claimed job.
type Outcome int

const (
	OutcomeSucceeded Outcome = iota
	OutcomeFailed
)

// Apply is the pure retry state machine: given an in_progress job and an
// execution outcome, it returns the job's next state. Persistence lives
// in the stores; policy lives here, where it can be tested without I/O.
//
//	in_progress + succeeded            → done
//	in_progress + failed, retries left → pending (attempts+1)
//	in_progress + failed, exhausted    → failed  (attempts+1, last error)
func Apply(job model.RefreshJob, outcome Outcome, jobErr string, maxAttempts int, now time.Time) model.RefreshJob {
	if job.Status != model.StatusInProgress {
		return job
	}

	switch outcome {
	case OutcomeSucceeded:
		job.Status = model.StatusDone
		job.FinishedAt = &now
		job.LastError = ""
	case OutcomeFailed:
		job.Attempts++
		job.LastError = jobErr
		job.ClaimedAt = nil
		if job.Attempts >= maxAttempts {
			job.Status = model.StatusFailed
			job.FinishedAt = &now
		} else {
			job.Status = model.StatusPending
		}
	}
	return job
}

// sortClaimed restores the claim ordering (priority descending, oldest
// first within a band) on a batch of jobs.
func sortClaimed(jobs []model.RefreshJob) {
	sort.SliceStable(jobs, func(i, j int) bool {
		if jobs[i].Priority != jobs[j].Priority {
			return jobs[i].Priority > jobs[j].Priority
		}
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})
}
