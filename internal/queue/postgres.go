package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/placedir/refresh-cli/internal/db"
	"github.com/placedir/refresh-cli/internal/model"
)

// PostgresStore implements Store on pgxpool. All state transitions are
// single conditional statements, so two workers racing on the same rows
// cannot read-modify-write past each other.
type PostgresStore struct {
	pool        db.Pool
	closeFn     func()
	maxAttempts int
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, maxAttempts int) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "queue: parse postgres config")
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "queue: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "queue: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close, maxAttempts: maxAttempts}, nil
}

// NewPostgresWithPool wraps an existing pool (shared with the place
// store, or a mock in tests).
func NewPostgresWithPool(pool db.Pool, maxAttempts int) *PostgresStore {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &PostgresStore{pool: pool, maxAttempts: maxAttempts}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS refresh_jobs (
	id          TEXT PRIMARY KEY,
	place_id    BIGINT NOT NULL REFERENCES places(id),
	reason      TEXT NOT NULL,
	priority    INTEGER NOT NULL DEFAULT 0,
	status      TEXT NOT NULL DEFAULT 'pending',
	attempts    INTEGER NOT NULL DEFAULT 0,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	claimed_at  TIMESTAMPTZ,
	finished_at TIMESTAMPTZ,
	last_error  TEXT NOT NULL DEFAULT ''
);

-- The at-most-one-active-job-per-place invariant lives in the schema,
-- not in application code.
CREATE UNIQUE INDEX IF NOT EXISTS idx_refresh_jobs_active_place
	ON refresh_jobs(place_id) WHERE status IN ('pending', 'in_progress');

CREATE INDEX IF NOT EXISTS idx_refresh_jobs_claim
	ON refresh_jobs(status, priority DESC, created_at ASC);
CREATE INDEX IF NOT EXISTS idx_refresh_jobs_claimed_at
	ON refresh_jobs(claimed_at) WHERE status = 'in_progress';
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "queue: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

const enqueueSQL = `
INSERT INTO refresh_jobs (id, place_id, reason, priority, status, created_at)
SELECT $1, p.id, $3, $4, 'pending', $5 FROM places p WHERE p.id = $2
ON CONFLICT (place_id) WHERE status IN ('pending', 'in_progress')
DO UPDATE SET priority = GREATEST(refresh_jobs.priority, EXCLUDED.priority)
RETURNING id, (xmax = 0) AS is_new`

// Enqueue creates a pending job for the place, or returns the existing
// active one. The existence check, dedupe and priority raise are one
// statement, so two concurrent enqueues for the same place cannot lose
// an update.
func (s *PostgresStore) Enqueue(ctx context.Context, placeID int64, reason model.RefreshReason, priority int) (EnqueueResult, error) {
	if !reason.Valid() {
		return EnqueueResult{}, eris.Errorf("queue: unknown reason %q", reason)
	}
	if priority <= 0 {
		priority = reason.DefaultPriority()
	}

	var res EnqueueResult
	err := s.pool.QueryRow(ctx, enqueueSQL,
		uuid.New().String(), placeID, string(reason), priority, time.Now().UTC(),
	).Scan(&res.JobID, &res.IsNew)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return EnqueueResult{}, ErrInvalidPlace
		}
		return EnqueueResult{}, eris.Wrapf(err, "queue: enqueue place %d", placeID)
	}
	return res, nil
}

const claimSQL = `
UPDATE refresh_jobs SET status = 'in_progress', claimed_at = $2
WHERE id IN (
	SELECT id FROM refresh_jobs
	WHERE status = 'pending'
	ORDER BY priority DESC, created_at ASC
	LIMIT $1
	FOR UPDATE SKIP LOCKED
)
RETURNING id, place_id, reason, priority, status, attempts, created_at, claimed_at, finished_at, last_error`

// ClaimBatch atomically moves up to limit due jobs to in_progress and
// returns them ordered by priority then age. SKIP LOCKED keeps two
// concurrent claimers from ever sharing a job.
func (s *PostgresStore) ClaimBatch(ctx context.Context, limit int) ([]model.RefreshJob, error) {
	rows, err := s.pool.Query(ctx, claimSQL, limit, time.Now().UTC())
	if err != nil {
		return nil, eris.Wrap(err, "queue: claim batch")
	}
	defer rows.Close()

	var jobs []model.RefreshJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "queue: claim batch iterate")
	}

	// RETURNING does not preserve the subquery order.
	sortClaimed(jobs)
	return jobs, nil
}

func (s *PostgresStore) MarkDone(ctx context.Context, jobID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE refresh_jobs SET status = 'done', finished_at = $2, last_error = '' WHERE id = $1 AND status = 'in_progress'`,
		jobID, time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "queue: mark done %s", jobID)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

const markFailedSQL = `
UPDATE refresh_jobs SET
	attempts    = attempts + 1,
	last_error  = $2,
	claimed_at  = NULL,
	status      = CASE WHEN attempts + 1 >= $3 THEN 'failed' ELSE 'pending' END,
	finished_at = CASE WHEN attempts + 1 >= $3 THEN $4 ELSE finished_at END
WHERE id = $1 AND status = 'in_progress'`

// MarkFailed applies the retry transition: back to pending while retries
// remain, terminal failed once attempts reach the limit.
func (s *PostgresStore) MarkFailed(ctx context.Context, jobID string, jobErr string) error {
	tag, err := s.pool.Exec(ctx, markFailedSQL, jobID, jobErr, s.maxAttempts, time.Now().UTC())
	if err != nil {
		return eris.Wrapf(err, "queue: mark failed %s", jobID)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

// SweepStale recovers jobs whose worker died mid-claim.
func (s *PostgresStore) SweepStale(ctx context.Context, claimTimeout time.Duration) (int, error) {
	if claimTimeout <= 0 {
		claimTimeout = DefaultClaimTimeout
	}
	cutoff := time.Now().UTC().Add(-claimTimeout)
	tag, err := s.pool.Exec(ctx,
		`UPDATE refresh_jobs SET status = 'pending', claimed_at = NULL WHERE status = 'in_progress' AND claimed_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, eris.Wrap(err, "queue: sweep stale")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) GetJob(ctx context.Context, jobID string) (*model.RefreshJob, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, place_id, reason, priority, status, attempts, created_at, claimed_at, finished_at, last_error FROM refresh_jobs WHERE id = $1`,
		jobID,
	)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, eris.Wrapf(err, "queue: get job %s", jobID)
	}
	return &job, nil
}

func (s *PostgresStore) Stats(ctx context.Context) (Stats, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM refresh_jobs GROUP BY status`)
	if err != nil {
		return Stats{}, eris.Wrap(err, "queue: stats")
	}
	defer rows.Close()

	var stats Stats
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, eris.Wrap(err, "queue: scan stats")
		}
		switch model.RefreshStatus(status) {
		case model.StatusPending:
			stats.Pending = count
		case model.StatusInProgress:
			stats.InProgress = count
		case model.StatusDone:
			stats.Done = count
		case model.StatusFailed:
			stats.Failed = count
		}
	}
	return stats, eris.Wrap(rows.Err(), "queue: stats iterate")
}

// scanJob reads a job from any row source using the canonical column
// order.
func scanJob(row pgx.Row) (model.RefreshJob, error) {
	var (
		job    model.RefreshJob
		reason string
		status string
	)
	err := row.Scan(&job.ID, &job.PlaceID, &reason, &job.Priority, &status,
		&job.Attempts, &job.CreatedAt, &job.ClaimedAt, &job.FinishedAt, &job.LastError)
	if err != nil {
		return model.RefreshJob{}, err
	}
	job.Reason = model.RefreshReason(reason)
	job.Status = model.RefreshStatus(status)
	return job, nil
}
