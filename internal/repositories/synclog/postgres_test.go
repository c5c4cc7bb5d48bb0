package synclog

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"github.com/clinmesh/clinsync/internal/common"
	"github.com/clinmesh/clinsync/internal/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestCreate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	log := &models.SyncLog{
		ID:           uuid.New(),
		RemoteNodeID: uuid.New(),
		StartedAt:    time.Now().UTC(),
		Status:       models.SyncStatusInProgress,
	}

	mock.ExpectExec(`INSERT INTO sync_logs \(id, remote_node_id, started_at, status\)`).
		WithArgs(log.ID, log.RemoteNodeID, log.StartedAt, log.Status).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Create(context.Background(), log); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFinalize_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	completed := time.Now().UTC()
	watermark := completed.Add(-time.Minute)
	log := &models.SyncLog{
		ID:           uuid.New(),
		RemoteNodeID: uuid.New(),
		Status:       models.SyncStatusCompleted,
		CompletedAt:  &completed,
		Watermark:    &watermark,
		Received:     map[models.Kind]int{models.KindVolunteer: 3},
	}

	mock.ExpectExec(`UPDATE sync_logs\s+SET completed_at = \$2, status = \$3, .* WHERE id = \$1 AND status = \$8`).
		WithArgs(log.ID, log.CompletedAt, log.Status, log.Stage, log.Watermark,
			[]byte(`{"volunteers":3}`), log.ErrorMessage, models.SyncStatusInProgress).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Finalize(context.Background(), log); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFinalize_AlreadyFinalized(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	log := &models.SyncLog{ID: uuid.New(), Status: models.SyncStatusFailed}

	mock.ExpectExec(`UPDATE sync_logs`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Finalize(context.Background(), log)
	if err == nil {
		t.Fatalf("expected error for already finalized row")
	}
}

func TestLatestCompleted_ReturnsWatermark(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	remoteID := uuid.New()
	started := time.Now().UTC().Add(-time.Hour)
	completed := started.Add(time.Minute)
	watermark := started.Add(30 * time.Second)

	rows := sqlmock.NewRows([]string{"id", "remote_node_id", "started_at", "completed_at",
		"status", "stage", "watermark", "received", "error_message"}).
		AddRow(uuid.New(), remoteID, started, completed,
			models.SyncStatusCompleted, "", watermark, []byte(`{"catalogs":2}`), "")

	mock.ExpectQuery(`SELECT .* FROM sync_logs\s+WHERE remote_node_id = \$1 AND status = \$2\s+ORDER BY started_at DESC\s+LIMIT 1`).
		WithArgs(remoteID, models.SyncStatusCompleted).
		WillReturnRows(rows)

	got, err := repo.LatestCompleted(context.Background(), remoteID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Watermark == nil || !got.Watermark.Equal(watermark) {
		t.Fatalf("watermark mismatch: %v", got.Watermark)
	}
	if got.Received[models.KindCatalog] != 2 {
		t.Fatalf("received counts not decoded: %v", got.Received)
	}
}

func TestLatestCompleted_NeverSynced(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	remoteID := uuid.New()

	mock.ExpectQuery(`SELECT .* FROM sync_logs`).
		WithArgs(remoteID, models.SyncStatusCompleted).
		WillReturnRows(sqlmock.NewRows([]string{"id", "remote_node_id", "started_at", "completed_at",
			"status", "stage", "watermark", "received", "error_message"}))

	_, err := repo.LatestCompleted(context.Background(), remoteID)
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestRecent(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	started := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "remote_node_id", "started_at", "completed_at",
		"status", "stage", "watermark", "received", "error_message"}).
		AddRow(uuid.New(), uuid.New(), started, nil,
			models.SyncStatusInProgress, "", nil, nil, "").
		AddRow(uuid.New(), uuid.New(), started.Add(-time.Hour), started.Add(-59*time.Minute),
			models.SyncStatusFailed, "fetch", nil, nil, "connection refused")

	mock.ExpectQuery(`SELECT .* FROM sync_logs\s+ORDER BY started_at DESC\s+LIMIT \$1`).
		WithArgs(5).
		WillReturnRows(rows)

	got, err := repo.Recent(context.Background(), 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 rows, got %d", len(got))
	}
	if got[1].Stage != "fetch" || got[1].ErrorMessage == "" {
		t.Fatalf("failed attempt fields not scanned: %+v", got[1])
	}
}
