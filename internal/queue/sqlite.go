package queue

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/placedir/refresh-cli/internal/model"
)

// SQLiteStore implements Store on modernc.org/sqlite for local and
// single-node deployments. SQLite serializes writers, so the same
// single-statement transitions used by the Postgres store stay atomic.
type SQLiteStore struct {
	db          *sql.DB
	maxAttempts int
}

// NewSQLite opens (or creates) the database at dsn and configures WAL
// mode.
func NewSQLite(dsn string, maxAttempts int) (*SQLiteStore, error) {
	// Pragmas go in the DSN so they apply to every connection the
	// database/sql pool opens, not just the one a plain Exec lands on.
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	dsn += sep + "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "queue: sqlite open")
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &SQLiteStore{db: db, maxAttempts: maxAttempts}, nil
}

// NewSQLiteWithDB wraps an existing handle (shared with the place store).
func NewSQLiteWithDB(db *sql.DB, maxAttempts int) *SQLiteStore {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &SQLiteStore{db: db, maxAttempts: maxAttempts}
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS refresh_jobs (
	id          TEXT PRIMARY KEY,
	place_id    INTEGER NOT NULL REFERENCES places(id),
	reason      TEXT NOT NULL,
	priority    INTEGER NOT NULL DEFAULT 0,
	status      TEXT NOT NULL DEFAULT 'pending',
	attempts    INTEGER NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL,
	claimed_at  DATETIME,
	finished_at DATETIME,
	last_error  TEXT NOT NULL DEFAULT ''
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_refresh_jobs_active_place
	ON refresh_jobs(place_id) WHERE status IN ('pending', 'in_progress');
CREATE INDEX IF NOT EXISTS idx_refresh_jobs_claim
	ON refresh_jobs(status, priority DESC, created_at ASC);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "queue: sqlite migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Enqueue checks and inserts inside one transaction. SQLite's writer
// lock gives the same no-lost-update guarantee the Postgres upsert does.
func (s *SQLiteStore) Enqueue(ctx context.Context, placeID int64, reason model.RefreshReason, priority int) (EnqueueResult, error) {
	if !reason.Valid() {
		return EnqueueResult{}, eris.Errorf("queue: unknown reason %q", reason)
	}
	if priority <= 0 {
		priority = reason.DefaultPriority()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return EnqueueResult{}, eris.Wrap(err, "queue: sqlite begin")
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT 1 FROM places WHERE id = ?`, placeID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return EnqueueResult{}, ErrInvalidPlace
		}
		return EnqueueResult{}, eris.Wrapf(err, "queue: sqlite check place %d", placeID)
	}

	var existingID string
	var existingPriority int
	err = tx.QueryRowContext(ctx,
		`SELECT id, priority FROM refresh_jobs WHERE place_id = ? AND status IN ('pending', 'in_progress')`,
		placeID,
	).Scan(&existingID, &existingPriority)
	switch {
	case err == nil:
		if priority > existingPriority {
			if _, err := tx.ExecContext(ctx,
				`UPDATE refresh_jobs SET priority = ? WHERE id = ?`, priority, existingID,
			); err != nil {
				return EnqueueResult{}, eris.Wrapf(err, "queue: sqlite raise priority %s", existingID)
			}
		}
		if err := tx.Commit(); err != nil {
			return EnqueueResult{}, eris.Wrap(err, "queue: sqlite commit")
		}
		return EnqueueResult{JobID: existingID, IsNew: false}, nil

	case errors.Is(err, sql.ErrNoRows):
		id := uuid.New().String()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO refresh_jobs (id, place_id, reason, priority, status, created_at) VALUES (?, ?, ?, ?, 'pending', ?)`,
			id, placeID, string(reason), priority, time.Now().UTC(),
		); err != nil {
			return EnqueueResult{}, eris.Wrapf(err, "queue: sqlite insert job for place %d", placeID)
		}
		if err := tx.Commit(); err != nil {
			return EnqueueResult{}, eris.Wrap(err, "queue: sqlite commit")
		}
		return EnqueueResult{JobID: id, IsNew: true}, nil

	default:
		return EnqueueResult{}, eris.Wrapf(err, "queue: sqlite find active job for place %d", placeID)
	}
}

const sqliteClaimSQL = `
UPDATE refresh_jobs SET status = 'in_progress', claimed_at = ?
WHERE id IN (
	SELECT id FROM refresh_jobs
	WHERE status = 'pending'
	ORDER BY priority DESC, created_at ASC
	LIMIT ?
)
RETURNING id, place_id, reason, priority, status, attempts, created_at, claimed_at, finished_at, last_error`

func (s *SQLiteStore) ClaimBatch(ctx context.Context, limit int) ([]model.RefreshJob, error) {
	rows, err := s.db.QueryContext(ctx, sqliteClaimSQL, time.Now().UTC(), limit)
	if err != nil {
		return nil, eris.Wrap(err, "queue: sqlite claim batch")
	}
	defer rows.Close()

	var jobs []model.RefreshJob
	for rows.Next() {
		job, err := scanJobSQL(rows)
		if err != nil {
			return nil, eris.Wrap(err, "queue: sqlite scan claimed job")
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "queue: sqlite claim iterate")
	}

	sortClaimed(jobs)
	return jobs, nil
}

func (s *SQLiteStore) MarkDone(ctx context.Context, jobID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE refresh_jobs SET status = 'done', finished_at = ?, last_error = '' WHERE id = ? AND status = 'in_progress'`,
		time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "queue: sqlite mark done %s", jobID)
	}
	return requireRow(res)
}

const sqliteMarkFailedSQL = `
UPDATE refresh_jobs SET
	attempts    = attempts + 1,
	last_error  = ?,
	claimed_at  = NULL,
	status      = CASE WHEN attempts + 1 >= ? THEN 'failed' ELSE 'pending' END,
	finished_at = CASE WHEN attempts + 1 >= ? THEN ? ELSE finished_at END
WHERE id = ? AND status = 'in_progress'`

func (s *SQLiteStore) MarkFailed(ctx context.Context, jobID string, jobErr string) error {
	res, err := s.db.ExecContext(ctx, sqliteMarkFailedSQL,
		jobErr, s.maxAttempts, s.maxAttempts, time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "queue: sqlite mark failed %s", jobID)
	}
	return requireRow(res)
}

func (s *SQLiteStore) SweepStale(ctx context.Context, claimTimeout time.Duration) (int, error) {
	if claimTimeout <= 0 {
		claimTimeout = DefaultClaimTimeout
	}
	cutoff := time.Now().UTC().Add(-claimTimeout)
	res, err := s.db.ExecContext(ctx,
		`UPDATE refresh_jobs SET status = 'pending', claimed_at = NULL WHERE status = 'in_progress' AND claimed_at < ?`,
		cutoff,
	)
	if err != nil {
		return 0, eris.Wrap(err, "queue: sqlite sweep stale")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "queue: sqlite sweep rows affected")
	}
	return int(n), nil
}

func (s *SQLiteStore) GetJob(ctx context.Context, jobID string) (*model.RefreshJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, place_id, reason, priority, status, attempts, created_at, claimed_at, finished_at, last_error FROM refresh_jobs WHERE id = ?`,
		jobID,
	)
	job, err := scanJobSQL(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, eris.Wrapf(err, "queue: sqlite get job %s", jobID)
	}
	return &job, nil
}

func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM refresh_jobs GROUP BY status`)
	if err != nil {
		return Stats{}, eris.Wrap(err, "queue: sqlite stats")
	}
	defer rows.Close()

	var stats Stats
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, eris.Wrap(err, "queue: sqlite scan stats")
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
	return stats, eris.Wrap(rows.Err(), "queue: sqlite stats iterate")
}

type sqlRow interface {
	Scan(dest ...any) error
}

func scanJobSQL(row sqlRow) (model.RefreshJob, error) {
	var (
		job        model.RefreshJob
		reason     string
		status     string
		claimedAt  sql.NullTime
		finishedAt sql.NullTime
	)
	err := row.Scan(&job.ID, &job.PlaceID, &reason, &job.Priority, &status,
		&job.Attempts, &job.CreatedAt, &claimedAt, &finishedAt, &job.LastError)
	if err != nil {
		return model.RefreshJob{}, err
	}
	job.Reason = model.RefreshReason(reason)
	job.Status = model.RefreshStatus(status)
	if claimedAt.Valid {
		job.ClaimedAt = &claimedAt.Time
	}
	if finishedAt.Valid {
		job.FinishedAt = &finishedAt.Time
	}
	return job, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "queue: sqlite rows affected")
	}
	if n == 0 {
		return ErrJobNotFound
	}
	return nil
}
