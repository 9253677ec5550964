package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/placedir/refresh-cli/internal/model"
)

var transitionNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func inProgressJob(attempts int) model.RefreshJob {
	claimed := transitionNow.Add(-time.Minute)
	return model.RefreshJob{
		ID:        "job-1",
		PlaceID:   42,
		Reason:    model.ReasonManual,
		Priority:  100,
		Status:    model.StatusInProgress,
		Attempts:  attempts,
		CreatedAt: transitionNow.Add(-time.Hour),
		ClaimedAt: &claimed,
	}
}

func TestApplySuccess(t *testing.T) {
	next := Apply(inProgressJob(0), OutcomeSucceeded, "", DefaultMaxAttempts, transitionNow)

	assert.Equal(t, model.StatusDone, next.Status)
	assert.Equal(t, &transitionNow, next.FinishedAt)
	assert.Empty(t, next.LastError)
	assert.Equal(t, 0, next.Attempts)
}

func TestApplyFailureWithRetriesLeft(t *testing.T) {
	next := Apply(inProgressJob(0), OutcomeFailed, "fetch timeout", DefaultMaxAttempts, transitionNow)

	assert.Equal(t, model.StatusPending, next.Status)
	assert.Equal(t, 1, next.Attempts)
	assert.Equal(t, "fetch timeout", next.LastError)
	assert.Nil(t, next.ClaimedAt)
	assert.Nil(t, next.FinishedAt)
}

func TestApplyFailureExhaustsRetries(t *testing.T) {
	next := Apply(inProgressJob(DefaultMaxAttempts-1), OutcomeFailed, "still broken", DefaultMaxAttempts, transitionNow)

	assert.Equal(t, model.StatusFailed, next.Status)
	assert.Equal(t, DefaultMaxAttempts, next.Attempts)
	assert.Equal(t, "still broken", next.LastError)
	assert.Equal(t, &transitionNow, next.FinishedAt)
}

func TestApplyIgnoresNonInProgressJobs(t *testing.T) {
	for _, status := range []model.RefreshStatus{model.StatusPending, model.StatusDone, model.StatusFailed} {
		job := inProgressJob(0)
		job.Status = status
		next := Apply(job, OutcomeFailed, "x", DefaultMaxAttempts, transitionNow)
		assert.Equal(t, job, next, string(status))
	}
}

func TestSortClaimedOrdering(t *testing.T) {
	jobs := []model.RefreshJob{
		{ID: "c", Priority: 20, CreatedAt: transitionNow.Add(-1 * time.Hour)},
		{ID: "a", Priority: 100, CreatedAt: transitionNow.Add(-1 * time.Minute)},
		{ID: "b", Priority: 20, CreatedAt: transitionNow.Add(-2 * time.Hour)},
	}
	sortClaimed(jobs)

	// Priority descending, oldest first within a band.
	assert.Equal(t, "a", jobs[0].ID)
	assert.Equal(t, "b", jobs[1].ID)
	assert.Equal(t, "c", jobs[2].ID)
}
