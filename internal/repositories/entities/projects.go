package entities

import (
	"database/sql"

	"github.com/clinmesh/clinsync/internal/models"
)

func init() {
	kindTables[models.KindProject] = kindTable{
		table: "projects",
		cols:  "id, code, title, description, origin_node_id, updated_at",
		upsert: `
			INSERT INTO projects (id, code, title, description, origin_node_id, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE SET
				code = EXCLUDED.code,
				title = EXCLUDED.title,
				description = EXCLUDED.description,
				origin_node_id = EXCLUDED.origin_node_id,
				updated_at = EXCLUDED.updated_at
			WHERE projects.updated_at < EXCLUDED.updated_at`,
		scan: scanProject,
		args: projectArgs,
	}
}

func scanProject(rows *sql.Rows) (models.Syncable, error) {
	var p models.Project
	if err := rows.Scan(&p.ID, &p.Code, &p.Title, &p.Description, &p.OriginNodeID, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func projectArgs(e models.Syncable) []any {
	p := e.(*models.Project)
	return []any{p.ID, p.Code, p.Title, p.Description, p.OriginNodeID, p.UpdatedAt}
}
