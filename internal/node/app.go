// Package node initializes and runs the sync node: database and migrations,
// object storage, channel and session registries, the authentication
// services, the pull orchestrator, and the HTTP server, with graceful
// shutdown on OS signals.
package node

import (
	"context"
	"crypto/ed25519"
	"database/sql"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/clinmesh/clinsync/internal/blob"
	"github.com/clinmesh/clinsync/internal/channel"
	"github.com/clinmesh/clinsync/internal/config"
	"github.com/clinmesh/clinsync/internal/export"
	"github.com/clinmesh/clinsync/internal/importer"
	"github.com/clinmesh/clinsync/internal/logging"
	"github.com/clinmesh/clinsync/internal/nodeauth"
	"github.com/clinmesh/clinsync/internal/pull"
	"github.com/clinmesh/clinsync/internal/repositories/repomanager"
	"github.com/clinmesh/clinsync/internal/server"
	"github.com/clinmesh/clinsync/internal/session"
)

// channelReapInterval is how often the background reaper sweeps expired
// channels.
const channelReapInterval = 1 * time.Minute

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	channels *channel.MemoryStore
	server   *server.Server
}

func NewApp(c *config.Config) (*App, error) {
	sl := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(sl)

	identity, err := loadIdentity(c)
	if err != nil {
		return nil, fmt.Errorf("loading node identity: %w", err)
	}

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(context.Background(), db); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	blobs := blob.NewS3Store(blob.S3Config{
		RootUser:     c.S3RootUser,
		RootPassword: c.S3RootPassword,
		Bucket:       c.S3Bucket,
		Region:       c.S3Region,
		BaseEndpoint: c.S3BaseEndpoint,
	})

	channels := channel.NewMemoryStore()
	sessions := session.NewMemoryStore()
	challenges := nodeauth.NewChallengeStore(nodeauth.DefaultChallengeTTL)

	// Sessions and pending challenges die with their channel, however the
	// channel goes away.
	channels.OnEvict = func(id uuid.UUID) {
		sessions.EvictChannel(id)
		challenges.EvictChannel(id)
	}

	establisher := channel.NewEstablisher(channels, c.ChannelTTL)
	gate := session.NewGate(sessions, channels, []byte(c.SecretKey), c.SessionTTL)
	auth := nodeauth.NewService(identity, rm.Nodes(db), challenges, gate, logger)

	exportSvc := export.NewService(identity.NodeID, identity.Name, rm.Entities(db), blobs, logger)

	engine := importer.NewEngine(db, rm, identity.NodeID, logger)
	orchestrator := pull.NewOrchestrator(db, rm, engine, blobs, identity, logger)
	orchestrator.SetPageSize(c.PageSize)
	orchestrator.SetAttemptTimeout(c.AttemptTimeout)

	srv := server.New(c.ListenAddr, logger, channels, establisher, gate, auth,
		exportSvc, orchestrator, c.OperatorToken)

	return &App{
		config:   c,
		logger:   logger,
		db:       db,
		channels: channels,
		server:   srv,
	}, nil
}

// loadIdentity builds the node's cryptographic identity from configuration.
func loadIdentity(c *config.Config) (*nodeauth.Identity, error) {
	nodeID, err := uuid.Parse(c.NodeID)
	if err != nil {
		return nil, fmt.Errorf("node id: %w", err)
	}

	seed, err := base64.StdEncoding.DecodeString(c.IdentitySeed)
	if err != nil {
		return nil, fmt.Errorf("identity seed: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("identity seed: expected %d bytes, got %d", ed25519.SeedSize, len(seed))
	}

	return &nodeauth.Identity{
		NodeID:     nodeID,
		Name:       c.NodeName,
		PrivateKey: ed25519.NewKeyFromSeed(seed),
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting node", "node_id", app.config.NodeID, "node_name", app.config.NodeName)

	app.initSignalHandler(cancelFunc)
	app.channels.StartReaper(ctx, channelReapInterval, app.logger)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.server.Run(ctx); err != nil {
			app.logger.Error(ctx, "http server", "error", err)
			cancelFunc()
		}
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Warn(ctx, "closing database", "error", err)
	}
}
