// Package server exposes the node over HTTP: the node-to-node wire API with
// its sealed bodies and interceptor chain, and the local operator API gated
// by the coarser end-user credential.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/clinmesh/clinsync/internal/channel"
	"github.com/clinmesh/clinsync/internal/export"
	"github.com/clinmesh/clinsync/internal/logging"
	"github.com/clinmesh/clinsync/internal/models"
	"github.com/clinmesh/clinsync/internal/nodeauth"
	"github.com/clinmesh/clinsync/internal/pull"
	"github.com/clinmesh/clinsync/internal/session"
	"github.com/clinmesh/clinsync/internal/wire"
)

type Server struct {
	address       string
	logger        logging.Logger
	channels      channel.Store
	establisher   *channel.Establisher
	gate          *session.Gate
	auth          *nodeauth.Service
	export        *export.Service
	orchestrator  *pull.Orchestrator
	operatorToken string
}

func New(address string, logger logging.Logger, channels channel.Store, establisher *channel.Establisher,
	gate *session.Gate, auth *nodeauth.Service, exportSvc *export.Service,
	orchestrator *pull.Orchestrator, operatorToken string) *Server {
	return &Server{
		address:       address,
		logger:        logger.With("module", "http_server"),
		channels:      channels,
		establisher:   establisher,
		gate:          gate,
		auth:          auth,
		export:        exportSvc,
		orchestrator:  orchestrator,
		operatorToken: operatorToken,
	}
}

// Handler builds the route table. Wire endpoints run through the composed
// interceptor chain (channel → session/capability → rate class → handler);
// operator endpoints run behind the bearer-token check.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Channel negotiation happens in plaintext; everything below rides a
	// channel.
	mux.HandleFunc("POST "+wire.PathOpenChannel, s.handleOpenChannel)

	mux.Handle("POST "+wire.PathIdentify, s.withChannel(s.handleIdentify))
	mux.Handle("POST "+wire.PathChallenge, s.withChannel(s.handleChallenge))
	mux.Handle("POST "+wire.PathAuthenticate, s.withChannel(s.handleAuthenticate))
	mux.Handle("POST "+wire.PathCloseChannel, s.withChannel(s.handleCloseChannel))

	mux.Handle("POST "+wire.PathManifest, s.withChannel(
		s.withSession(models.CapabilityReadWrite, session.ClassStandard, s.handleManifest)))
	mux.Handle("POST "+wire.PathEntities, s.withChannel(
		s.withSession(models.CapabilityReadWrite, session.ClassSync, s.handleListEntities)))
	mux.Handle("POST "+wire.PathRecordingBytes, s.withChannel(
		s.withSession(models.CapabilityReadWrite, session.ClassSync, s.handleRecordingBytes)))

	mux.HandleFunc("POST "+wire.PathLocalPreview, s.operatorOnly(s.handlePreview))
	mux.HandleFunc("POST "+wire.PathLocalPull, s.operatorOnly(s.handlePull))
	mux.HandleFunc("GET "+wire.PathLocalStatus, s.operatorOnly(s.handleStatus))

	return mux
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "stopping HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
