package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/clinmesh/clinsync/internal/channel"
	"github.com/clinmesh/clinsync/internal/common"
	"github.com/clinmesh/clinsync/internal/cryptox"
	"github.com/clinmesh/clinsync/internal/models"
	"github.com/clinmesh/clinsync/internal/session"
	"github.com/clinmesh/clinsync/internal/syncerr"
	"github.com/clinmesh/clinsync/internal/wire"
)

// maxRequestBytes bounds a single wire request body.
const maxRequestBytes = 16 << 20

// request carries the resolved per-call state through the interceptor chain.
type request struct {
	channel *channel.Channel
	session *session.Session
	token   string
	body    []byte
}

// sealedHandler is a wire handler once the chain has decrypted the body.
// Returning []byte seals raw bytes; anything else is sealed as JSON.
type sealedHandler func(ctx context.Context, req *request) (any, error)

// withChannel resolves the channel from its header, decrypts the request
// body under the channel key, and seals whatever the inner handler returns.
// Unknown and expired channels fail closed before any payload is touched.
func (s *Server) withChannel(h sealedHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		channelID, err := uuid.Parse(r.Header.Get(wire.HeaderChannelID))
		if err != nil {
			writePlainError(w, http.StatusUnauthorized, "missing or malformed channel id")
			return
		}

		ch, err := s.channels.Get(channelID)
		if err != nil {
			writePlainError(w, http.StatusUnauthorized, err.Error())
			return
		}

		sealed, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
		if err != nil {
			s.writeSealedError(w, ch, http.StatusBadRequest, "reading request body")
			return
		}
		body, err := cryptox.Open(sealed, ch.Key)
		if err != nil {
			// Wrong key or tampered payload; say nothing specific.
			s.writeSealedError(w, ch, http.StatusBadRequest, "unreadable request body")
			return
		}

		req := &request{
			channel: ch,
			token:   r.Header.Get(wire.HeaderToken),
			body:    body,
		}

		resp, err := h(r.Context(), req)
		if err != nil {
			status, msg := mapError(err)
			s.writeSealedError(w, ch, status, msg)
			return
		}

		s.writeSealed(w, ch, resp)
	})
}

// withSession runs the session and rate gate before the inner handler. The
// required capability and the budget class are declared per endpoint at
// route registration.
func (s *Server) withSession(required models.Capability, class session.Class, h sealedHandler) sealedHandler {
	return func(ctx context.Context, req *request) (any, error) {
		if req.token == "" {
			return nil, common.ErrInvalidToken
		}
		sess, err := s.gate.CheckAndRecord(req.token, required, class)
		if err != nil {
			return nil, err
		}
		if sess.ChannelID != req.channel.ID {
			return nil, common.ErrInvalidToken
		}
		req.session = sess
		return h(ctx, req)
	}
}

// operatorOnly guards the local API with the end-user credential. This is
// deliberately a separate, coarser layer than node sessions: an operator
// may trigger a sync, only a node session moves data.
func (s *Server) operatorOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if len(token) > len(prefix) {
			token = token[len(prefix):]
		}
		if s.operatorToken == "" ||
			subtle.ConstantTimeCompare([]byte(token), []byte(s.operatorToken)) != 1 {
			writePlainError(w, http.StatusUnauthorized, "operator credential rejected")
			return
		}
		h(w, r)
	}
}

func (s *Server) writeSealed(w http.ResponseWriter, ch *channel.Channel, resp any) {
	var sealed []byte
	var err error
	if raw, ok := resp.([]byte); ok {
		sealed, err = cryptox.Seal(raw, ch.Key)
	} else {
		sealed, err = cryptox.SealJSON(resp, ch.Key)
	}
	if err != nil {
		writePlainError(w, http.StatusInternalServerError, "sealing response")
		return
	}
	w.Header().Set("Content-Type", wire.ContentTypeSealed)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(sealed)
}

func (s *Server) writeSealedError(w http.ResponseWriter, ch *channel.Channel, status int, msg string) {
	sealed, err := cryptox.SealJSON(wire.ErrorResponse{Error: msg}, ch.Key)
	if err != nil {
		writePlainError(w, status, msg)
		return
	}
	w.Header().Set("Content-Type", wire.ContentTypeSealed)
	w.WriteHeader(status)
	_, _ = w.Write(sealed)
}

func writePlainError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(wire.ErrorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// mapError translates the error taxonomy into wire statuses.
func mapError(err error) (int, string) {
	var authErr *syncerr.AuthenticationError
	var authzErr *syncerr.AuthorizationError
	var notFound *syncerr.NotFoundError

	switch {
	case errors.Is(err, common.ErrRateLimited):
		return http.StatusTooManyRequests, err.Error()
	case errors.Is(err, common.ErrUnauthorized),
		errors.Is(err, common.ErrNodeNotAuthorized):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrSessionExpired),
		errors.Is(err, common.ErrUnknownChannel),
		errors.Is(err, common.ErrChannelExpired):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, common.ErrSyncInProgress):
		return http.StatusConflict, err.Error()
	case errors.As(err, &authErr):
		return http.StatusUnauthorized, err.Error()
	case errors.As(err, &authzErr):
		return http.StatusForbidden, err.Error()
	case errors.As(err, &notFound), errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound, err.Error()
	default:
		return http.StatusInternalServerError, err.Error()
	}
}
