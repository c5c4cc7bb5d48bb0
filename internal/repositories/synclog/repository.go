// Package synclog persists the append-only audit trail of pull attempts.
// Rows are created when an attempt starts, finalized exactly once, and never
// deleted; the latest completed row per remote node carries the watermark
// for the next pull.
package synclog

import (
	"context"

	"github.com/google/uuid"

	"github.com/clinmesh/clinsync/internal/models"
)

type Repository interface {
	// Create inserts the in_progress row for a new attempt.
	Create(ctx context.Context, log *models.SyncLog) error

	// Finalize sets the terminal state of the row. The watermark is only
	// stored for completed attempts.
	Finalize(ctx context.Context, log *models.SyncLog) error

	// LatestCompleted returns the most recent completed attempt for the
	// remote node, or common.ErrNotFound when it has never been pulled.
	LatestCompleted(ctx context.Context, remoteNodeID uuid.UUID) (*models.SyncLog, error)

	// Recent returns the newest attempts across all nodes, newest first.
	Recent(ctx context.Context, limit int) ([]*models.SyncLog, error)
}
