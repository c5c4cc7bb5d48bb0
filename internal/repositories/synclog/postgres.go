package synclog

import (
	"context"
	"database/sql"
	"encoding/json"
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

func (r *PostgresRepository) Create(ctx context.Context, log *models.SyncLog) error {
	query := `
		INSERT INTO sync_logs (id, remote_node_id, started_at, status)
		VALUES ($1, $2, $3, $4)`

	_, err := r.db.ExecContext(ctx, query, log.ID, log.RemoteNodeID, log.StartedAt, log.Status)
	if err != nil {
		return fmt.Errorf("create sync log: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Finalize(ctx context.Context, log *models.SyncLog) error {
	received, err := json.Marshal(log.Received)
	if err != nil {
		return fmt.Errorf("encode received counts: %w", err)
	}

	// The status guard keeps finalization single-shot: a row that already
	// reached a terminal state is left untouched.
	query := `
		UPDATE sync_logs
		SET completed_at = $2, status = $3, stage = $4, watermark = $5,
			received = $6, error_message = $7
		WHERE id = $1 AND status = $8`

	res, err := r.db.ExecContext(ctx, query,
		log.ID, log.CompletedAt, log.Status, log.Stage, log.Watermark,
		received, log.ErrorMessage, models.SyncStatusInProgress)
	if err != nil {
		return fmt.Errorf("finalize sync log: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("sync log %s already finalized", log.ID)
	}
	return nil
}

func (r *PostgresRepository) LatestCompleted(ctx context.Context, remoteNodeID uuid.UUID) (*models.SyncLog, error) {
	query := selectCols + `
		WHERE remote_node_id = $1 AND status = $2
		ORDER BY started_at DESC
		LIMIT 1`

	rows, err := r.db.QueryContext(ctx, query, remoteNodeID, models.SyncStatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("latest completed: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, common.ErrNotFound
	}
	return scanLog(rows)
}

func (r *PostgresRepository) Recent(ctx context.Context, limit int) ([]*models.SyncLog, error) {
	query := selectCols + `
		ORDER BY started_at DESC
		LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("recent sync logs: %w", err)
	}
	defer rows.Close()

	var result []*models.SyncLog
	for rows.Next() {
		log, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, log)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

const selectCols = `
	SELECT id, remote_node_id, started_at, completed_at, status, stage,
		watermark, received, error_message
	FROM sync_logs`

func scanLog(rows *sql.Rows) (*models.SyncLog, error) {
	var log models.SyncLog
	var completed, watermark sql.NullTime
	var received []byte

	if err := rows.Scan(&log.ID, &log.RemoteNodeID, &log.StartedAt, &completed,
		&log.Status, &log.Stage, &watermark, &received, &log.ErrorMessage); err != nil {
		return nil, err
	}
	if completed.Valid {
		log.CompletedAt = &completed.Time
	}
	if watermark.Valid {
		log.Watermark = &watermark.Time
	}
	if len(received) > 0 {
		if err := json.Unmarshal(received, &log.Received); err != nil {
			return nil, fmt.Errorf("decode received counts: %w", err)
		}
	}
	return &log, nil
}
