// Package nodes stores the local registry of known remote nodes: their
// addresses, Ed25519 public keys, and the capability each is trusted with.
// Rows are provisioned out of band; the sync pipeline only reads them.
package nodes

import (
	"context"

	"github.com/google/uuid"

	"github.com/clinmesh/clinsync/internal/models"
)

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Node, error)
	List(ctx context.Context) ([]*models.Node, error)
}
