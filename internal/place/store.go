// Package place persists directory listings. The refresh pipeline only
// ever reads identity fields and writes the enrichable subset; listing
// creation and deletion belong to the directory ingestion path.
package place

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/placedir/refresh-cli/internal/model"
)

// ErrPlaceNotFound means the referenced place id is unknown.
var ErrPlaceNotFound = eris.New("place: not found")

// Store is the persistence contract for places.
type Store interface {
	GetPlace(ctx context.Context, id int64) (*model.Place, error)
	// ApplyEnrichment merges an enrichment update into the stored record.
	// Fields the update did not learn keep their stored values.
	ApplyEnrichment(ctx context.Context, placeID int64, update model.PlaceUpdate) error
	// ImportPlaces bulk-loads listings, used by the CSV import command.
	ImportPlaces(ctx context.Context, places []model.Place) (int64, error)
	Migrate(ctx context.Context) error
	Close() error
}
