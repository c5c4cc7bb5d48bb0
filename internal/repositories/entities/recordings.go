package entities

import (
	"database/sql"

	"github.com/clinmesh/clinsync/internal/models"
)

func init() {
	kindTables[models.KindRecording] = kindTable{
		table: "recordings",
		cols:  "id, session_id, catalog_id, storage_key, byte_size, checksum, origin_node_id, updated_at",
		upsert: `
			INSERT INTO recordings (id, session_id, catalog_id, storage_key, byte_size, checksum, origin_node_id, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO UPDATE SET
				session_id = EXCLUDED.session_id,
				catalog_id = EXCLUDED.catalog_id,
				storage_key = EXCLUDED.storage_key,
				byte_size = EXCLUDED.byte_size,
				checksum = EXCLUDED.checksum,
				origin_node_id = EXCLUDED.origin_node_id,
				updated_at = EXCLUDED.updated_at
			WHERE recordings.updated_at < EXCLUDED.updated_at`,
		scan: scanRecording,
		args: recordingArgs,
	}
}

func scanRecording(rows *sql.Rows) (models.Syncable, error) {
	var r models.Recording
	if err := rows.Scan(&r.ID, &r.SessionID, &r.CatalogID, &r.StorageKey, &r.ByteSize, &r.Checksum, &r.OriginNodeID, &r.UpdatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func recordingArgs(e models.Syncable) []any {
	r := e.(*models.Recording)
	return []any{r.ID, r.SessionID, r.CatalogID, r.StorageKey, r.ByteSize, r.Checksum, r.OriginNodeID, r.UpdatedAt}
}
