package place

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/placedir/refresh-cli/internal/model"
)

// SQLiteStore implements Store on modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at dsn.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	// Pragmas go in the DSN so they apply to every connection the
	// database/sql pool opens, not just the one a plain Exec lands on.
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	dsn += sep + "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "place: sqlite open")
	}
	return &SQLiteStore{db: db}, nil
}

// NewSQLiteWithDB wraps an existing handle (shared with the queue store).
func NewSQLiteWithDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// DB exposes the underlying handle so the queue store can share it.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS places (
	id                INTEGER PRIMARY KEY,
	slug              TEXT NOT NULL UNIQUE,
	name              TEXT NOT NULL,
	website           TEXT NOT NULL DEFAULT '',
	city              TEXT NOT NULL DEFAULT '',
	phone             TEXT NOT NULL DEFAULT '',
	avg_rating        REAL NOT NULL DEFAULT 0,
	review_count      INTEGER NOT NULL DEFAULT 0,
	rating_source     TEXT NOT NULL DEFAULT '',
	rating_confidence TEXT NOT NULL DEFAULT '',
	opening_hours     TEXT,
	about_text        TEXT NOT NULL DEFAULT '',
	facts             TEXT,
	photo_count       INTEGER NOT NULL DEFAULT 0,
	quality_score     INTEGER NOT NULL DEFAULT 0,
	quality_flags     TEXT,
	enriched_at       DATETIME
);

CREATE INDEX IF NOT EXISTS idx_places_quality_score ON places(quality_score);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "place: sqlite migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteSelectPlaceSQL = `SELECT id, slug, name, website, city, phone, avg_rating, review_count, rating_source, rating_confidence, opening_hours, about_text, facts, photo_count, quality_score, quality_flags, enriched_at FROM places WHERE id = ?`

func (s *SQLiteStore) GetPlace(ctx context.Context, id int64) (*model.Place, error) {
	var (
		p          model.Place
		confidence string
		hoursJSON  sql.NullString
		factsJSON  sql.NullString
		flagsJSON  sql.NullString
		enrichedAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, sqliteSelectPlaceSQL, id).Scan(
		&p.ID, &p.Slug, &p.Name, &p.Website, &p.City, &p.Phone,
		&p.AvgRating, &p.ReviewCount, &p.RatingSource, &confidence,
		&hoursJSON, &p.AboutText, &factsJSON, &p.PhotoCount,
		&p.QualityScore, &flagsJSON, &enrichedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlaceNotFound
		}
		return nil, eris.Wrapf(err, "place: sqlite get %d", id)
	}
	p.RatingConfidence = model.RatingConfidence(confidence)
	if enrichedAt.Valid {
		p.EnrichedAt = &enrichedAt.Time
	}
	if err := decodePlaceJSON(&p, []byte(hoursJSON.String), []byte(factsJSON.String), []byte(flagsJSON.String)); err != nil {
		return nil, err
	}
	return &p, nil
}

const sqliteUpdateEnrichmentSQL = `
UPDATE places SET
	avg_rating = ?, review_count = ?, rating_source = ?, rating_confidence = ?,
	opening_hours = ?, about_text = ?, phone = ?, facts = ?,
	quality_score = ?, quality_flags = ?, enriched_at = ?
WHERE id = ?`

func (s *SQLiteStore) ApplyEnrichment(ctx context.Context, placeID int64, update model.PlaceUpdate) error {
	current, err := s.GetPlace(ctx, placeID)
	if err != nil {
		return err
	}
	merged := current.Apply(update, time.Now().UTC())

	hoursJSON, factsJSON, flagsJSON, err := encodePlaceJSON(merged)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, sqliteUpdateEnrichmentSQL,
		merged.AvgRating, merged.ReviewCount, merged.RatingSource,
		string(merged.RatingConfidence), nullString(hoursJSON), merged.AboutText,
		merged.Phone, nullString(factsJSON), merged.QualityScore,
		nullString(flagsJSON), merged.EnrichedAt, placeID,
	)
	if err != nil {
		return eris.Wrapf(err, "place: sqlite apply enrichment %d", placeID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "place: sqlite rows affected")
	}
	if n == 0 {
		return ErrPlaceNotFound
	}
	return nil
}

// ImportPlaces inserts listings row by row inside one transaction; the
// COPY fast path is a Postgres concern.
func (s *SQLiteStore) ImportPlaces(ctx context.Context, places []model.Place) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "place: sqlite begin import")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO places (id, slug, name, website, city, phone) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, eris.Wrap(err, "place: sqlite prepare import")
	}
	defer stmt.Close()

	var n int64
	for _, p := range places {
		if _, err := stmt.ExecContext(ctx, p.ID, p.Slug, p.Name, p.Website, p.City, p.Phone); err != nil {
			return 0, eris.Wrapf(err, "place: sqlite import %s", p.Slug)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "place: sqlite commit import")
	}
	return n, nil
}

func nullString(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
