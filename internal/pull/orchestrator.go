// Package pull drives one synchronization attempt against a remote node:
// resolve → handshake → manifest → dependency-ordered paginated fetch →
// import → teardown, with a guaranteed channel close and an audit row for
// every attempt that gets past the registry lookup.
package pull

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/clinmesh/clinsync/internal/blob"
	"github.com/clinmesh/clinsync/internal/common"
	"github.com/clinmesh/clinsync/internal/importer"
	"github.com/clinmesh/clinsync/internal/logging"
	"github.com/clinmesh/clinsync/internal/models"
	"github.com/clinmesh/clinsync/internal/nodeauth"
	"github.com/clinmesh/clinsync/internal/remote"
	"github.com/clinmesh/clinsync/internal/repositories/repomanager"
	"github.com/clinmesh/clinsync/internal/syncerr"
	"github.com/clinmesh/clinsync/internal/wire"
)

// DefaultAttemptTimeout is the coarse wall-clock bound on a whole attempt,
// independent of per-call timeouts.
const DefaultAttemptTimeout = 5 * time.Minute

// defaultParallelPages bounds concurrent page fetches within one kind.
// Kinds themselves are strictly sequential.
const defaultParallelPages = 4

// Caller is the slice of the invocation client the orchestrator needs;
// tests substitute an in-memory implementation.
type Caller interface {
	Invoke(ctx context.Context, path, token string, reqBody, respBody any) error
	InvokeBytes(ctx context.Context, path, token string, reqBody any) (io.ReadCloser, error)
	Close(ctx context.Context) error
}

type Orchestrator struct {
	db       *sql.DB
	rm       repomanager.RepositoryManager
	engine   *importer.Engine
	blobs    blob.Store
	identity *nodeauth.Identity
	logger   logging.Logger

	pageSize       int
	parallelPages  int
	attemptTimeout time.Duration
	locks          *nodeLocks

	// dial is a seam over remote.Dial for tests.
	dial func(ctx context.Context, address string) (Caller, error)
}

func NewOrchestrator(db *sql.DB, rm repomanager.RepositoryManager, engine *importer.Engine,
	blobs blob.Store, identity *nodeauth.Identity, logger logging.Logger) *Orchestrator {
	return &Orchestrator{
		db:             db,
		rm:             rm,
		engine:         engine,
		blobs:          blobs,
		identity:       identity,
		logger:         logger.With("module", "pull"),
		pageSize:       wire.DefaultPageSize,
		parallelPages:  defaultParallelPages,
		attemptTimeout: DefaultAttemptTimeout,
		locks:          newNodeLocks(),
		dial: func(ctx context.Context, address string) (Caller, error) {
			return remote.Dial(ctx, address, nil)
		},
	}
}

// SetPageSize overrides the entity page size requested from remotes.
func (o *Orchestrator) SetPageSize(n int) {
	if n > 0 {
		o.pageSize = n
	}
}

// SetAttemptTimeout overrides the wall-clock bound on one attempt.
func (o *Orchestrator) SetAttemptTimeout(d time.Duration) {
	if d > 0 {
		o.attemptTimeout = d
	}
}

// Preview fetches the remote manifest without importing anything. It runs
// the full handshake, asks for the manifest, and tears the channel down.
func (o *Orchestrator) Preview(ctx context.Context, remoteNodeID uuid.UUID, since *time.Time) (*models.SyncManifest, error) {
	node, err := o.resolve(ctx, remoteNodeID)
	if err != nil {
		return nil, err
	}

	if since == nil {
		since = o.lastWatermark(ctx, remoteNodeID)
	}

	conn, token, err := o.handshake(ctx, node)
	if err != nil {
		return nil, err
	}
	defer o.closeChannel(conn)

	var manifest models.SyncManifest
	if err := conn.Invoke(ctx, wire.PathManifest, token, &wire.ManifestRequest{Since: since}, &manifest); err != nil {
		return nil, err
	}
	return &manifest, nil
}

// Pull runs one complete synchronization attempt. The returned SyncResult
// mirrors the finalized SyncLog row; err is non-nil whenever the attempt did
// not complete.
func (o *Orchestrator) Pull(ctx context.Context, remoteNodeID uuid.UUID, since *time.Time) (*models.SyncResult, error) {
	node, err := o.resolve(ctx, remoteNodeID)
	if err != nil {
		// No SyncLog row exists yet; pre-resolution failures surface directly.
		return nil, err
	}

	if !o.locks.tryAcquire(node.ID) {
		return nil, common.ErrSyncInProgress
	}
	defer o.locks.release(node.ID)

	if since == nil {
		since = o.lastWatermark(ctx, remoteNodeID)
	}

	logs := o.rm.SyncLogs(o.db)
	attempt := &models.SyncLog{
		ID:           uuid.New(),
		RemoteNodeID: node.ID,
		StartedAt:    time.Now().UTC(),
		Status:       models.SyncStatusInProgress,
	}
	if err := logs.Create(ctx, attempt); err != nil {
		return nil, fmt.Errorf("creating sync log: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, o.attemptTimeout)
	defer cancel()

	manifest, received, stage, runErr := o.run(ctx, node, since)

	now := time.Now().UTC()
	attempt.CompletedAt = &now
	attempt.Received = received
	if runErr != nil {
		attempt.Status = models.SyncStatusFailed
		attempt.Stage = string(stage)
		attempt.ErrorMessage = runErr.Error()
		o.logger.Error(ctx, "pull failed", "remote", node.ID, "stage", stage, "error", runErr)
	} else {
		attempt.Status = models.SyncStatusCompleted
		// The watermark is the manifest's generation time, never "now":
		// records written on the remote between generation and completion
		// belong to the next pull.
		attempt.Watermark = &manifest.GeneratedAt
		o.logger.Info(ctx, "pull completed", "remote", node.ID, "received", received)
	}

	// Finalization must survive attempt-context cancellation.
	if err := logs.Finalize(context.WithoutCancel(ctx), attempt); err != nil {
		o.logger.Error(ctx, "finalizing sync log", "error", err)
		if runErr == nil {
			runErr = err
			attempt.Status = models.SyncStatusFailed
		}
	}

	result := &models.SyncResult{
		Status:      attempt.Status,
		Stage:       attempt.Stage,
		StartedAt:   attempt.StartedAt,
		CompletedAt: attempt.CompletedAt,
		Received:    received,
		Error:       attempt.ErrorMessage,
	}
	return result, runErr
}

// Status reports the most recent attempts, newest first.
func (o *Orchestrator) Status(ctx context.Context, limit int) ([]*models.SyncLog, error) {
	if limit <= 0 {
		limit = 20
	}
	return o.rm.SyncLogs(o.db).Recent(ctx, limit)
}

// run executes the fallible stages and reports which one failed. The
// channel is closed on every exit path, cancellation included.
func (o *Orchestrator) run(ctx context.Context, node *models.Node, since *time.Time) (*models.SyncManifest, map[models.Kind]int, syncerr.Stage, error) {
	conn, token, err := o.handshake(ctx, node)
	if err != nil {
		return nil, nil, syncerr.StageHandshake, err
	}
	defer o.closeChannel(conn)

	var manifest models.SyncManifest
	if err := conn.Invoke(ctx, wire.PathManifest, token, &wire.ManifestRequest{Since: since}, &manifest); err != nil {
		return nil, nil, syncerr.StageManifest, err
	}

	payload := &models.SyncPayload{
		GeneratedAt: manifest.GeneratedAt,
		Entities:    make(map[models.Kind][]models.Syncable, len(models.KindOrder)),
	}

	// Kinds are fetched to exhaustion in dependency order; pages within a
	// kind may run in parallel, kinds never overlap.
	for _, kind := range models.KindOrder {
		items, err := o.fetchKind(ctx, conn, token, kind, since)
		if err != nil {
			return nil, nil, syncerr.StageFetch, err
		}
		payload.Entities[kind] = items
	}

	if err := o.fetchRecordingBytes(ctx, conn, token, payload); err != nil {
		return nil, nil, syncerr.StageFetch, err
	}

	received := payload.Count()

	if _, err := o.engine.Import(ctx, payload); err != nil {
		return nil, received, syncerr.StageImport, err
	}

	return &manifest, received, "", nil
}

func (o *Orchestrator) resolve(ctx context.Context, remoteNodeID uuid.UUID) (*models.Node, error) {
	node, err := o.rm.Nodes(o.db).GetByID(ctx, remoteNodeID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, &syncerr.NotFoundError{What: "remote node", ID: remoteNodeID.String()}
		}
		return nil, err
	}
	if !node.Authorized {
		return nil, common.ErrNodeNotAuthorized
	}
	return node, nil
}

// lastWatermark reads the watermark of the latest completed attempt; a node
// never pulled before gets a nil watermark, meaning a full pull.
func (o *Orchestrator) lastWatermark(ctx context.Context, remoteNodeID uuid.UUID) *time.Time {
	last, err := o.rm.SyncLogs(o.db).LatestCompleted(ctx, remoteNodeID)
	if err != nil {
		return nil
	}
	return last.Watermark
}

func (o *Orchestrator) handshake(ctx context.Context, node *models.Node) (Caller, string, error) {
	conn, err := o.dial(ctx, node.Address)
	if err != nil {
		return nil, "", err
	}

	token, err := remote.Handshake(ctx, conn, o.identity)
	if err != nil {
		o.closeChannel(conn)
		return nil, "", err
	}
	return conn, token, nil
}

// closeChannel is the one guaranteed teardown path. It runs detached from
// the attempt context so cancellation cannot skip it.
func (o *Orchestrator) closeChannel(conn Caller) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := conn.Close(ctx); err != nil {
		o.logger.Warn(ctx, "closing channel", "error", err)
	}
}
