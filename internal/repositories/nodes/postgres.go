package nodes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/clinmesh/clinsync/internal/common"
	"github.com/clinmesh/clinsync/internal/dbx"
	"github.com/clinmesh/clinsync/internal/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Node, error) {
	query := `
		SELECT id, name, address, public_key, capability, authorized, created_at
		FROM nodes WHERE id = $1`

	var n models.Node
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&n.ID, &n.Name, &n.Address, &n.PublicKey, &n.Capability, &n.Authorized, &n.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get node: %w", err)
	}
	return &n, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.Node, error) {
	query := `
		SELECT id, name, address, public_key, capability, authorized, created_at
		FROM nodes ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	defer rows.Close()

	var result []*models.Node
	for rows.Next() {
		var n models.Node
		if err := rows.Scan(&n.ID, &n.Name, &n.Address, &n.PublicKey, &n.Capability, &n.Authorized, &n.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
