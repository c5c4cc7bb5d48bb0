package importer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"github.com/clinmesh/clinsync/internal/logging"
	"github.com/clinmesh/clinsync/internal/models"
	"github.com/clinmesh/clinsync/internal/repositories/repomanager"
	"github.com/clinmesh/clinsync/internal/syncerr"
)

func discardLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newEngineWithMock(t *testing.T) (*Engine, sqlmock.Sqlmock, uuid.UUID) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	localID := uuid.New()
	return NewEngine(db, repomanager.NewPostgresRepositoryManager(), localID, discardLogger()), mock, localID
}

func TestImport_AppliesInDependencyOrderAndRemapsOrigin(t *testing.T) {
	engine, mock, localID := newEngineWithMock(t)

	remoteOrigin := uuid.New()
	catalog := &models.Catalog{
		ID: uuid.New(), Category: "modality", Code: "EEG", Label: "EEG",
		OriginNodeID: remoteOrigin, UpdatedAt: time.Now().UTC(),
	}
	volunteer := &models.Volunteer{
		ID: uuid.New(), Code: "VOL-001", BirthYear: 1990, Sex: "m",
		OriginNodeID: remoteOrigin, UpdatedAt: time.Now().UTC(),
	}

	mock.ExpectBegin()
	// Catalogs precede volunteers; both upserts carry the importing node's id
	// in the origin column, not the remote's.
	mock.ExpectExec(`INSERT INTO catalogs`).
		WithArgs(catalog.ID, catalog.Category, catalog.Code, catalog.Label, localID, catalog.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO volunteers`).
		WithArgs(volunteer.ID, volunteer.Code, volunteer.BirthYear, volunteer.Sex, volunteer.Notes, localID, volunteer.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	applied, err := engine.Import(context.Background(), &models.SyncPayload{
		Entities: map[models.Kind][]models.Syncable{
			models.KindVolunteer: {volunteer},
			models.KindCatalog:   {catalog},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if applied[models.KindCatalog] != 1 || applied[models.KindVolunteer] != 1 {
		t.Fatalf("applied counts mismatch: %v", applied)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestImport_SkippedByNewerWinsNotCounted(t *testing.T) {
	engine, mock, localID := newEngineWithMock(t)

	volunteer := &models.Volunteer{ID: uuid.New(), Code: "VOL-002", UpdatedAt: time.Now().UTC()}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO volunteers`).
		WithArgs(volunteer.ID, volunteer.Code, volunteer.BirthYear, volunteer.Sex, volunteer.Notes, localID, volunteer.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	applied, err := engine.Import(context.Background(), &models.SyncPayload{
		Entities: map[models.Kind][]models.Syncable{
			models.KindVolunteer: {volunteer},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if applied[models.KindVolunteer] != 0 {
		t.Fatalf("skipped record must not be counted as applied: %v", applied)
	}
}

func TestImport_FailureRollsBackEverything(t *testing.T) {
	engine, mock, localID := newEngineWithMock(t)

	catalog := &models.Catalog{ID: uuid.New(), Category: "modality", Code: "MRI", Label: "MRI", UpdatedAt: time.Now().UTC()}
	volunteer := &models.Volunteer{ID: uuid.New(), Code: "VOL-003", UpdatedAt: time.Now().UTC()}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO catalogs`).
		WithArgs(catalog.ID, catalog.Category, catalog.Code, catalog.Label, localID, catalog.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO volunteers`).
		WithArgs(volunteer.ID, volunteer.Code, volunteer.BirthYear, volunteer.Sex, volunteer.Notes, localID, volunteer.UpdatedAt).
		WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	_, err := engine.Import(context.Background(), &models.SyncPayload{
		Entities: map[models.Kind][]models.Syncable{
			models.KindCatalog:   {catalog},
			models.KindVolunteer: {volunteer},
		},
	})

	var importErr *syncerr.ImportError
	if !errors.As(err, &importErr) {
		t.Fatalf("want ImportError, got %v", err)
	}
	if importErr.Kind != string(models.KindVolunteer) {
		t.Fatalf("failed kind: got %q", importErr.Kind)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("rollback not issued: %v", err)
	}
}
