// Package wire defines the node-to-node protocol surface: endpoint paths,
// header names, and the request/response DTOs that travel sealed under the
// channel key. Everything here is JSON; byte fields use the default base64
// encoding.
package wire

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/clinmesh/clinsync/internal/models"
)

// Wire endpoint paths. Apart from PathOpenChannel, request and response
// bodies are AES-GCM sealed under the channel key.
const (
	PathOpenChannel    = "/sync/channel/open"
	PathCloseChannel   = "/sync/channel/close"
	PathIdentify       = "/sync/identify"
	PathChallenge      = "/sync/challenge"
	PathAuthenticate   = "/sync/authenticate"
	PathManifest       = "/sync/manifest"
	PathEntities       = "/sync/entities"
	PathRecordingBytes = "/sync/recordings/bytes"
)

// Headers carrying the channel reference and the session token. The token is
// metadata, not payload: it is checked by the session gate before a handler
// runs.
const (
	HeaderChannelID = "X-Channel-Id"
	HeaderToken     = "X-Access-Token"
)

// ContentTypeSealed marks a sealed (nonce || ciphertext) body.
const ContentTypeSealed = "application/x-clinsync-sealed"

// DefaultPageSize is the page size used by the pull orchestrator.
const DefaultPageSize = 100

type OpenChannelRequest struct {
	ClientPublicKey []byte `json:"client_public_key"`
}

type OpenChannelResponse struct {
	ChannelID       uuid.UUID `json:"channel_id"`
	ServerPublicKey []byte    `json:"server_public_key"`
	ExpiresAt       time.Time `json:"expires_at"`
}

type IdentifyRequest struct {
	NodeID    uuid.UUID `json:"node_id"`
	NodeName  string    `json:"node_name"`
	PublicKey []byte    `json:"public_key"`
}

type IdentifyResponse struct {
	NodeID   uuid.UUID `json:"node_id"`
	NodeName string    `json:"node_name"`
}

type ChallengeRequest struct {
	NodeID uuid.UUID `json:"node_id"`
}

type ChallengeResponse struct {
	Nonce     []byte    `json:"nonce"`
	ExpiresAt time.Time `json:"expires_at"`
}

type AuthenticateRequest struct {
	NodeID    uuid.UUID `json:"node_id"`
	Signature []byte    `json:"signature"`
}

type AuthenticateResponse struct {
	Token      string            `json:"token"`
	Capability models.Capability `json:"capability"`
	ExpiresAt  time.Time         `json:"expires_at"`
}

type ManifestRequest struct {
	Since *time.Time `json:"since,omitempty"`
}

type ListEntitiesRequest struct {
	Kind     string     `json:"kind"`
	Since    *time.Time `json:"since,omitempty"`
	Page     int        `json:"page"`
	PageSize int        `json:"page_size"`
}

type ListEntitiesResponse struct {
	Data         []json.RawMessage `json:"data"`
	Page         int               `json:"page"`
	PageSize     int               `json:"page_size"`
	TotalRecords int64             `json:"total_records"`
	TotalPages   int               `json:"total_pages"`
}

type RecordingBytesRequest struct {
	ID uuid.UUID `json:"id"`
}

// ErrorResponse is the sealed error body for wire failures once a channel
// exists, and the plaintext error body before one does.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// Local operator API, gated by the coarser end-user credential rather than a
// node session.
const (
	PathLocalPreview = "/api/sync/preview"
	PathLocalPull    = "/api/sync/pull"
	PathLocalStatus  = "/api/sync/status"
)

type PreviewRequest struct {
	RemoteNodeID uuid.UUID  `json:"remote_node_id"`
	Since        *time.Time `json:"since,omitempty"`
}

type PullRequest struct {
	RemoteNodeID uuid.UUID  `json:"remote_node_id"`
	Since        *time.Time `json:"since,omitempty"`
}

type StatusEntry struct {
	ID           uuid.UUID           `json:"id"`
	RemoteNodeID uuid.UUID           `json:"remote_node_id"`
	Status       models.SyncStatus   `json:"status"`
	Stage        string              `json:"stage,omitempty"`
	StartedAt    time.Time           `json:"started_at"`
	CompletedAt  *time.Time          `json:"completed_at,omitempty"`
	Watermark    *time.Time          `json:"watermark,omitempty"`
	Received     map[models.Kind]int `json:"entities_received_by_kind,omitempty"`
	Error        string              `json:"error_message,omitempty"`
}

type StatusResponse struct {
	Attempts []StatusEntry `json:"attempts"`
}
