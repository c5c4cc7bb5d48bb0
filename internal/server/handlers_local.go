package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/clinmesh/clinsync/internal/wire"
)

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req wire.PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writePlainError(w, http.StatusBadRequest, "malformed preview request")
		return
	}

	manifest, err := s.orchestrator.Preview(r.Context(), req.RemoteNodeID, req.Since)
	if err != nil {
		status, msg := mapError(err)
		writePlainError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, manifest)
}

func (s *Server) handlePull(w http.ResponseWriter, r *http.Request) {
	var req wire.PullRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writePlainError(w, http.StatusBadRequest, "malformed pull request")
		return
	}

	result, err := s.orchestrator.Pull(r.Context(), req.RemoteNodeID, req.Since)
	if err != nil && result == nil {
		status, msg := mapError(err)
		writePlainError(w, status, msg)
		return
	}
	// A failed attempt still produced an audit row; report it as the body.
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writePlainError(w, http.StatusBadRequest, "malformed limit")
			return
		}
		limit = n
	}

	attempts, err := s.orchestrator.Status(r.Context(), limit)
	if err != nil {
		status, msg := mapError(err)
		writePlainError(w, status, msg)
		return
	}

	resp := wire.StatusResponse{Attempts: make([]wire.StatusEntry, 0, len(attempts))}
	for _, a := range attempts {
		resp.Attempts = append(resp.Attempts, wire.StatusEntry{
			ID:           a.ID,
			RemoteNodeID: a.RemoteNodeID,
			Status:       a.Status,
			Stage:        a.Stage,
			StartedAt:    a.StartedAt,
			CompletedAt:  a.CompletedAt,
			Watermark:    a.Watermark,
			Received:     a.Received,
			Error:        a.ErrorMessage,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
