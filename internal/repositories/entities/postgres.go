package entities

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinmesh/clinsync/internal/common"
	"github.com/clinmesh/clinsync/internal/dbx"
	"github.com/clinmesh/clinsync/internal/models"
)

// kindTable holds everything kind-specific the generic queries need.
type kindTable struct {
	table  string
	cols   string
	upsert string
	scan   func(rows *sql.Rows) (models.Syncable, error)
	args   func(e models.Syncable) []any
}

// kindTables is populated by the per-kind files in this package.
var kindTables = map[models.Kind]kindTable{}

// PostgresRepository implements Repository over a dbx.DBTX, so the same code
// runs against *sql.DB for reads and *sql.Tx inside the import transaction.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Upsert(ctx context.Context, e models.Syncable) (bool, error) {
	t, ok := kindTables[e.EntityKind()]
	if !ok {
		return false, fmt.Errorf("%w: %s", common.ErrUnknownKind, e.EntityKind())
	}

	res, err := r.db.ExecContext(ctx, t.upsert, t.args(e)...)
	if err != nil {
		return false, fmt.Errorf("upsert %s: %w", t.table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	// 0 rows means the local copy is newer or equally fresh and was kept.
	return n == 1, nil
}

func (r *PostgresRepository) ListPage(ctx context.Context, kind models.Kind, since *time.Time, limit, offset int) ([]models.Syncable, error) {
	t, ok := kindTables[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", common.ErrUnknownKind, kind)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE ($1::timestamptz IS NULL OR updated_at > $1)
		ORDER BY updated_at, id
		LIMIT $2 OFFSET $3`, t.cols, t.table)

	rows, err := r.db.QueryContext(ctx, query, since, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", t.table, err)
	}
	defer rows.Close()

	var result []models.Syncable
	for rows.Next() {
		e, err := t.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", t.table, err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) Count(ctx context.Context, kind models.Kind, since *time.Time) (int64, error) {
	t, ok := kindTables[kind]
	if !ok {
		return 0, fmt.Errorf("%w: %s", common.ErrUnknownKind, kind)
	}

	query := fmt.Sprintf(
		`SELECT count(*) FROM %s WHERE ($1::timestamptz IS NULL OR updated_at > $1)`, t.table)

	var count int64
	if err := r.db.QueryRowContext(ctx, query, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("count %s: %w", t.table, err)
	}
	return count, nil
}

func (r *PostgresRepository) Stats(ctx context.Context, kind models.Kind, since *time.Time) (models.KindStat, error) {
	t, ok := kindTables[kind]
	if !ok {
		return models.KindStat{}, fmt.Errorf("%w: %s", common.ErrUnknownKind, kind)
	}

	bytesExpr := "0"
	if kind == models.KindRecording {
		bytesExpr = "coalesce(sum(byte_size), 0)"
	}
	query := fmt.Sprintf(`
		SELECT count(*), max(updated_at), %s FROM %s
		WHERE ($1::timestamptz IS NULL OR updated_at > $1)`, bytesExpr, t.table)

	var stat models.KindStat
	var latest sql.NullTime
	if err := r.db.QueryRowContext(ctx, query, since).Scan(&stat.Count, &latest, &stat.TotalBytes); err != nil {
		return models.KindStat{}, fmt.Errorf("stats %s: %w", t.table, err)
	}
	if latest.Valid {
		stat.LatestUpdate = &latest.Time
	}
	return stat, nil
}

func (r *PostgresRepository) GetRecording(ctx context.Context, id uuid.UUID) (*models.Recording, error) {
	t := kindTables[models.KindRecording]

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, t.cols, t.table)

	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("get recording: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, common.ErrNotFound
	}
	e, err := t.scan(rows)
	if err != nil {
		return nil, err
	}
	return e.(*models.Recording), nil
}
