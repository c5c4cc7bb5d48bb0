// Package repomanager vends repository implementations bound to a database
// handle. Binding to dbx.DBTX rather than *sql.DB lets the import engine run
// every repository inside one transaction.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/clinmesh/clinsync/internal/dbx"
	"github.com/clinmesh/clinsync/internal/repositories/entities"
	"github.com/clinmesh/clinsync/internal/repositories/nodes"
	"github.com/clinmesh/clinsync/internal/repositories/synclog"
)

type RepositoryManager interface {
	Entities(db dbx.DBTX) entities.Repository
	Nodes(db dbx.DBTX) nodes.Repository
	SyncLogs(db dbx.DBTX) synclog.Repository
	RunMigrations(ctx context.Context, db *sql.DB) error
}
