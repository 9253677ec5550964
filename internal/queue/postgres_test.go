package queue

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/placedir/refresh-cli/internal/model"
)

// newMockStore creates a PostgresStore backed by pgxmock.
func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresWithPool(mock, DefaultMaxAttempts), mock
}

func TestPostgresEnqueueNewJob(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`INSERT INTO refresh_jobs`).
		WithArgs(pgxmock.AnyArg(), int64(42), "manual", 100, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "is_new"}).AddRow("job-1", true))

	res, err := s.Enqueue(context.Background(), 42, model.ReasonManual, 0)
	require.NoError(t, err)
	assert.Equal(t, "job-1", res.JobID)
	assert.True(t, res.IsNew)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresEnqueueDedupes(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`INSERT INTO refresh_jobs`).
		WithArgs(pgxmock.AnyArg(), int64(42), "stale", 20, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "is_new"}).AddRow("job-1", false))

	res, err := s.Enqueue(context.Background(), 42, model.ReasonStale, 0)
	require.NoError(t, err)
	assert.Equal(t, "job-1", res.JobID)
	assert.False(t, res.IsNew)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresEnqueueInvalidPlace(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`INSERT INTO refresh_jobs`).
		WithArgs(pgxmock.AnyArg(), int64(999), "manual", 100, pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)

	_, err := s.Enqueue(context.Background(), 999, model.ReasonManual, 0)
	assert.ErrorIs(t, err, ErrInvalidPlace)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresEnqueueRejectsUnknownReason(t *testing.T) {
	s, _ := newMockStore(t)
	_, err := s.Enqueue(context.Background(), 42, "whim", 10)
	assert.Error(t, err)
}

func TestPostgresClaimBatchOrdersResults(t *testing.T) {
	s, mock := newMockStore(t)

	created := time.Now().UTC().Add(-time.Hour)
	claimed := time.Now().UTC()
	// RETURNING comes back in arbitrary order; the store re-sorts.
	mock.ExpectQuery(`UPDATE refresh_jobs SET status = 'in_progress'`).
		WithArgs(2, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "place_id", "reason", "priority", "status", "attempts",
			"created_at", "claimed_at", "finished_at", "last_error",
		}).
			AddRow("low", int64(7), "stale", 20, "in_progress", 0, created, &claimed, nil, "").
			AddRow("high", int64(42), "manual", 100, "in_progress", 0, created, &claimed, nil, ""))

	jobs, err := s.ClaimBatch(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "high", jobs[0].ID)
	assert.Equal(t, "low", jobs[1].ID)
	assert.Equal(t, model.StatusInProgress, jobs[0].Status)
	assert.NotNil(t, jobs[0].ClaimedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMarkDone(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE refresh_jobs SET status = 'done'`).
		WithArgs("job-1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	assert.NoError(t, s.MarkDone(context.Background(), "job-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMarkDoneMissingJob(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE refresh_jobs SET status = 'done'`).
		WithArgs("ghost", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	assert.ErrorIs(t, s.MarkDone(context.Background(), "ghost"), ErrJobNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMarkFailed(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE refresh_jobs SET`).
		WithArgs("job-1", "fetch timeout", DefaultMaxAttempts, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	assert.NoError(t, s.MarkFailed(context.Background(), "job-1", "fetch timeout"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSweepStale(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE refresh_jobs SET status = 'pending'`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	n, err := s.SweepStale(context.Background(), 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetJobNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT id, place_id, reason`).
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetJob(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrJobNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStats(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT status, COUNT`).
		WillReturnRows(pgxmock.NewRows([]string{"status", "count"}).
			AddRow("pending", 4).
			AddRow("done", 10).
			AddRow("failed", 1))

	stats, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{Pending: 4, Done: 10, Failed: 1}, stats)
	assert.NoError(t, mock.ExpectationsWereMet())
}
