// Package importer applies an assembled sync payload to local storage in one
// atomic transaction: dependency-ordered upserts, newer-wins conflict
// resolution, and ownership remap to the importing node.
package importer

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/clinmesh/clinsync/internal/dbx"
	"github.com/clinmesh/clinsync/internal/logging"
	"github.com/clinmesh/clinsync/internal/models"
	"github.com/clinmesh/clinsync/internal/repositories/repomanager"
	"github.com/clinmesh/clinsync/internal/syncerr"
)

type Engine struct {
	db          *sql.DB
	rm          repomanager.RepositoryManager
	localNodeID uuid.UUID
	logger      logging.Logger
}

func NewEngine(db *sql.DB, rm repomanager.RepositoryManager, localNodeID uuid.UUID, logger logging.Logger) *Engine {
	return &Engine{
		db:          db,
		rm:          rm,
		localNodeID: localNodeID,
		logger:      logger.With("module", "importer"),
	}
}

// Import upserts every entity of the payload inside a single transaction,
// walking kinds in the fixed dependency order so references resolve. Any
// failure rolls back everything already applied in the same call. The
// returned map counts the records that actually overwrote or created local
// rows; records skipped by newer-wins are not in it.
func (e *Engine) Import(ctx context.Context, payload *models.SyncPayload) (map[models.Kind]int, error) {
	applied := make(map[models.Kind]int, len(models.KindOrder))

	err := dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := e.rm.Entities(tx)

		for _, kind := range models.KindOrder {
			for _, entity := range payload.Entities[kind] {
				// The originating-node field always becomes ours on import;
				// the remote's value is discarded.
				entity.SetOrigin(e.localNodeID)

				ok, err := repo.Upsert(ctx, entity)
				if err != nil {
					return &syncerr.ImportError{Kind: string(kind), Err: err}
				}
				if ok {
					applied[kind]++
				}
			}
		}
		return nil
	})
	if err != nil {
		e.logger.Error(ctx, "import rolled back", "error", err)
		return nil, err
	}

	e.logger.Info(ctx, "import committed", "applied", applied)
	return applied, nil
}
