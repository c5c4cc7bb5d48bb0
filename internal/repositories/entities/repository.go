// Package entities provides storage for the syncable entity kinds. One
// repository serves every kind through a fixed kind table, so adding a kind
// is a table edit plus a scan function, not new control flow.
package entities

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/clinmesh/clinsync/internal/models"
)

// Repository is what the export service and the import engine need from
// entity storage.
type Repository interface {
	// Upsert applies newer-wins semantics: the incoming entity replaces the
	// local row only when its updated_at is strictly newer (or no local row
	// exists). It reports whether the write was applied.
	Upsert(ctx context.Context, e models.Syncable) (bool, error)

	// ListPage returns one page of entities updated strictly after since
	// (all entities when since is nil), ordered by (updated_at, id).
	ListPage(ctx context.Context, kind models.Kind, since *time.Time, limit, offset int) ([]models.Syncable, error)

	// Count returns the number of entities matching the since filter.
	Count(ctx context.Context, kind models.Kind, since *time.Time) (int64, error)

	// Stats computes the manifest line of one kind: count, latest update
	// and, for recordings, total bytes.
	Stats(ctx context.Context, kind models.Kind, since *time.Time) (models.KindStat, error)

	// GetRecording resolves a recording row by id for byte serving.
	GetRecording(ctx context.Context, id uuid.UUID) (*models.Recording, error)
}
