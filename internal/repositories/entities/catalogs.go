package entities

import (
	"database/sql"

	"github.com/clinmesh/clinsync/internal/models"
)

func init() {
	kindTables[models.KindCatalog] = kindTable{
		table: "catalogs",
		cols:  "id, category, code, label, origin_node_id, updated_at",
		upsert: `
			INSERT INTO catalogs (id, category, code, label, origin_node_id, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE SET
				category = EXCLUDED.category,
				code = EXCLUDED.code,
				label = EXCLUDED.label,
				origin_node_id = EXCLUDED.origin_node_id,
				updated_at = EXCLUDED.updated_at
			WHERE catalogs.updated_at < EXCLUDED.updated_at`,
		scan: scanCatalog,
		args: catalogArgs,
	}
}

func scanCatalog(rows *sql.Rows) (models.Syncable, error) {
	var c models.Catalog
	if err := rows.Scan(&c.ID, &c.Category, &c.Code, &c.Label, &c.OriginNodeID, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func catalogArgs(e models.Syncable) []any {
	c := e.(*models.Catalog)
	return []any{c.ID, c.Category, c.Code, c.Label, c.OriginNodeID, c.UpdatedAt}
}
