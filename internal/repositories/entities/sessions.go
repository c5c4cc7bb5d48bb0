package entities

import (
	"database/sql"

	"github.com/clinmesh/clinsync/internal/models"
)

func init() {
	kindTables[models.KindSession] = kindTable{
		table: "sessions",
		cols:  "id, volunteer_id, project_id, started_at, ended_at, notes, origin_node_id, updated_at",
		upsert: `
			INSERT INTO sessions (id, volunteer_id, project_id, started_at, ended_at, notes, origin_node_id, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO UPDATE SET
				volunteer_id = EXCLUDED.volunteer_id,
				project_id = EXCLUDED.project_id,
				started_at = EXCLUDED.started_at,
				ended_at = EXCLUDED.ended_at,
				notes = EXCLUDED.notes,
				origin_node_id = EXCLUDED.origin_node_id,
				updated_at = EXCLUDED.updated_at
			WHERE sessions.updated_at < EXCLUDED.updated_at`,
		scan: scanSession,
		args: sessionArgs,
	}
}

func scanSession(rows *sql.Rows) (models.Syncable, error) {
	var s models.Session
	var ended sql.NullTime
	if err := rows.Scan(&s.ID, &s.VolunteerID, &s.ProjectID, &s.StartedAt, &ended, &s.Notes, &s.OriginNodeID, &s.UpdatedAt); err != nil {
		return nil, err
	}
	if ended.Valid {
		s.EndedAt = &ended.Time
	}
	return &s, nil
}

func sessionArgs(e models.Syncable) []any {
	s := e.(*models.Session)
	return []any{s.ID, s.VolunteerID, s.ProjectID, s.StartedAt, s.EndedAt, s.Notes, s.OriginNodeID, s.UpdatedAt}
}
