package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/clinmesh/clinsync/internal/wire"
)

func (s *Server) handleOpenChannel(w http.ResponseWriter, r *http.Request) {
	var req wire.OpenChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writePlainError(w, http.StatusBadRequest, "malformed open request")
		return
	}

	ch, serverPublic, err := s.establisher.Open(req.ClientPublicKey)
	if err != nil {
		s.logger.Warn(r.Context(), "channel negotiation failed", "error", err)
		writePlainError(w, http.StatusBadRequest, "channel negotiation failed")
		return
	}

	s.logger.Info(r.Context(), "channel opened", "channel_id", ch.ID)

	writeJSON(w, http.StatusOK, wire.OpenChannelResponse{
		ChannelID:       ch.ID,
		ServerPublicKey: serverPublic,
		ExpiresAt:       ch.ExpiresAt,
	})
}

func (s *Server) handleCloseChannel(ctx context.Context, req *request) (any, error) {
	s.channels.Evict(req.channel.ID)
	s.logger.Info(ctx, "channel closed", "channel_id", req.channel.ID)
	return struct{}{}, nil
}

func (s *Server) handleIdentify(ctx context.Context, req *request) (any, error) {
	var body wire.IdentifyRequest
	if err := json.Unmarshal(req.body, &body); err != nil {
		return nil, fmt.Errorf("malformed identify request: %w", err)
	}
	return s.auth.Identify(ctx, req.channel, &body)
}

func (s *Server) handleChallenge(ctx context.Context, req *request) (any, error) {
	var body wire.ChallengeRequest
	if err := json.Unmarshal(req.body, &body); err != nil {
		return nil, fmt.Errorf("malformed challenge request: %w", err)
	}
	return s.auth.Challenge(ctx, req.channel, &body)
}

func (s *Server) handleAuthenticate(ctx context.Context, req *request) (any, error) {
	var body wire.AuthenticateRequest
	if err := json.Unmarshal(req.body, &body); err != nil {
		return nil, fmt.Errorf("malformed authenticate request: %w", err)
	}
	return s.auth.Authenticate(ctx, req.channel, &body)
}

func (s *Server) handleManifest(ctx context.Context, req *request) (any, error) {
	var body wire.ManifestRequest
	if err := json.Unmarshal(req.body, &body); err != nil {
		return nil, fmt.Errorf("malformed manifest request: %w", err)
	}
	return s.export.Manifest(ctx, body.Since)
}

func (s *Server) handleListEntities(ctx context.Context, req *request) (any, error) {
	var body wire.ListEntitiesRequest
	if err := json.Unmarshal(req.body, &body); err != nil {
		return nil, fmt.Errorf("malformed list request: %w", err)
	}
	return s.export.ListEntities(ctx, &body)
}

func (s *Server) handleRecordingBytes(ctx context.Context, req *request) (any, error) {
	var body wire.RecordingBytesRequest
	if err := json.Unmarshal(req.body, &body); err != nil {
		return nil, fmt.Errorf("malformed bytes request: %w", err)
	}
	// Returns []byte, which the chain seals raw instead of as JSON.
	return s.export.RecordingBytes(ctx, body.ID)
}
