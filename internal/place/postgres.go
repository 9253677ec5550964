package place

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/placedir/refresh-cli/internal/db"
	"github.com/placedir/refresh-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with its own connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "place: parse postgres config")
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2
	cfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "place: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "place: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool (shared with the queue, or a
// mock in tests).
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool exposes the underlying pool so the queue store can share it.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS places (
	id                BIGINT PRIMARY KEY,
	slug              TEXT NOT NULL UNIQUE,
	name              TEXT NOT NULL,
	website           TEXT NOT NULL DEFAULT '',
	city              TEXT NOT NULL DEFAULT '',
	phone             TEXT NOT NULL DEFAULT '',
	avg_rating        DOUBLE PRECISION NOT NULL DEFAULT 0,
	review_count      INTEGER NOT NULL DEFAULT 0,
	rating_source     TEXT NOT NULL DEFAULT '',
	rating_confidence TEXT NOT NULL DEFAULT '',
	opening_hours     JSONB,
	about_text        TEXT NOT NULL DEFAULT '',
	facts             JSONB,
	photo_count       INTEGER NOT NULL DEFAULT 0,
	quality_score     INTEGER NOT NULL DEFAULT 0,
	quality_flags     JSONB,
	enriched_at       TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_places_slug ON places(slug);
CREATE INDEX IF NOT EXISTS idx_places_quality_score ON places(quality_score);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "place: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

const selectPlaceSQL = `SELECT id, slug, name, website, city, phone, avg_rating, review_count, rating_source, rating_confidence, opening_hours, about_text, facts, photo_count, quality_score, quality_flags, enriched_at FROM places WHERE id = $1`

func (s *PostgresStore) GetPlace(ctx context.Context, id int64) (*model.Place, error) {
	var (
		p          model.Place
		confidence string
		hoursJSON  []byte
		factsJSON  []byte
		flagsJSON  []byte
	)
	err := s.pool.QueryRow(ctx, selectPlaceSQL, id).Scan(
		&p.ID, &p.Slug, &p.Name, &p.Website, &p.City, &p.Phone,
		&p.AvgRating, &p.ReviewCount, &p.RatingSource, &confidence,
		&hoursJSON, &p.AboutText, &factsJSON, &p.PhotoCount,
		&p.QualityScore, &flagsJSON, &p.EnrichedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPlaceNotFound
		}
		return nil, eris.Wrapf(err, "place: get %d", id)
	}
	p.RatingConfidence = model.RatingConfidence(confidence)
	if err := decodePlaceJSON(&p, hoursJSON, factsJSON, flagsJSON); err != nil {
		return nil, err
	}
	return &p, nil
}

const updateEnrichmentSQL = `
UPDATE places SET
	avg_rating = $2, review_count = $3, rating_source = $4, rating_confidence = $5,
	opening_hours = $6, about_text = $7, phone = $8, facts = $9,
	quality_score = $10, quality_flags = $11, enriched_at = $12
WHERE id = $1`

// ApplyEnrichment loads the record, merges the update in memory and
// writes the enrichable fields back. The job queue row is what
// serializes refreshes per place, so a plain update is race-free here.
func (s *PostgresStore) ApplyEnrichment(ctx context.Context, placeID int64, update model.PlaceUpdate) error {
	current, err := s.GetPlace(ctx, placeID)
	if err != nil {
		return err
	}
	merged := current.Apply(update, time.Now().UTC())

	hoursJSON, factsJSON, flagsJSON, err := encodePlaceJSON(merged)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, updateEnrichmentSQL,
		placeID, merged.AvgRating, merged.ReviewCount, merged.RatingSource,
		string(merged.RatingConfidence), hoursJSON, merged.AboutText,
		merged.Phone, factsJSON, merged.QualityScore, flagsJSON, merged.EnrichedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "place: apply enrichment %d", placeID)
	}
	if tag.RowsAffected() == 0 {
		return ErrPlaceNotFound
	}
	return nil
}

var importColumns = []string{"id", "slug", "name", "website", "city", "phone"}

// ImportPlaces bulk-loads listings via COPY.
func (s *PostgresStore) ImportPlaces(ctx context.Context, places []model.Place) (int64, error) {
	rows := make([][]any, 0, len(places))
	for _, p := range places {
		rows = append(rows, []any{p.ID, p.Slug, p.Name, p.Website, p.City, p.Phone})
	}
	return db.CopyFrom(ctx, s.pool, "places", importColumns, rows)
}

func encodePlaceJSON(p model.Place) (hours, facts, flags []byte, err error) {
	if len(p.OpeningHours) > 0 {
		if hours, err = json.Marshal(p.OpeningHours); err != nil {
			return nil, nil, nil, eris.Wrap(err, "place: marshal hours")
		}
	}
	if len(p.Facts) > 0 {
		if facts, err = json.Marshal(p.Facts); err != nil {
			return nil, nil, nil, eris.Wrap(err, "place: marshal facts")
		}
	}
	if len(p.QualityFlags) > 0 {
		if flags, err = json.Marshal(p.QualityFlags); err != nil {
			return nil, nil, nil, eris.Wrap(err, "place: marshal flags")
		}
	}
	return hours, facts, flags, nil
}

func decodePlaceJSON(p *model.Place, hoursJSON, factsJSON, flagsJSON []byte) error {
	if len(hoursJSON) > 0 {
		if err := json.Unmarshal(hoursJSON, &p.OpeningHours); err != nil {
			return eris.Wrapf(err, "place: unmarshal hours for %d", p.ID)
		}
	}
	if len(factsJSON) > 0 {
		if err := json.Unmarshal(factsJSON, &p.Facts); err != nil {
			return eris.Wrapf(err, "place: unmarshal facts for %d", p.ID)
		}
	}
	if len(flagsJSON) > 0 {
		if err := json.Unmarshal(flagsJSON, &p.QualityFlags); err != nil {
			return eris.Wrapf(err, "place: unmarshal flags for %d", p.ID)
		}
	}
	return nil
}
