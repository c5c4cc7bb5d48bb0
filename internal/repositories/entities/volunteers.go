package entities

import (
	"database/sql"

	"github.com/clinmesh/clinsync/internal/models"
)

func init() {
	kindTables[models.KindVolunteer] = kindTable{
		table: "volunteers",
		cols:  "id, code, birth_year, sex, notes, origin_node_id, updated_at",
		upsert: `
			INSERT INTO volunteers (id, code, birth_year, sex, notes, origin_node_id, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO UPDATE SET
				code = EXCLUDED.code,
				birth_year = EXCLUDED.birth_year,
				sex = EXCLUDED.sex,
				notes = EXCLUDED.notes,
				origin_node_id = EXCLUDED.origin_node_id,
				updated_at = EXCLUDED.updated_at
			WHERE volunteers.updated_at < EXCLUDED.updated_at`,
		scan: scanVolunteer,
		args: volunteerArgs,
	}
}

func scanVolunteer(rows *sql.Rows) (models.Syncable, error) {
	var v models.Volunteer
	if err := rows.Scan(&v.ID, &v.Code, &v.BirthYear, &v.Sex, &v.Notes, &v.OriginNodeID, &v.UpdatedAt); err != nil {
		return nil, err
	}
	return &v, nil
}

func volunteerArgs(e models.Syncable) []any {
	v := e.(*models.Volunteer)
	return []any{v.ID, v.Code, v.BirthYear, v.Sex, v.Notes, v.OriginNodeID, v.UpdatedAt}
}
