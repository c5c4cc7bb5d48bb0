package models

import (
	"time"

	"github.com/google/uuid"
)

// SyncStatus is the lifecycle state of one pull attempt.
type SyncStatus string

const (
	SyncStatusInProgress SyncStatus = "in_progress"
	SyncStatusCompleted  SyncStatus = "completed"
	SyncStatusFailed     SyncStatus = "failed"
)

// SyncLog is one append-only audit row per pull attempt. It is created when
// the attempt starts and finalized exactly once; rows are never deleted.
// The Watermark of the latest completed row for a remote node supplies the
// next pull's `since`.
type SyncLog struct {
	ID           uuid.UUID
	RemoteNodeID uuid.UUID
	StartedAt    time.Time
	CompletedAt  *time.Time
	Status       SyncStatus
	Stage        string
	Watermark    *time.Time
	Received     map[Kind]int
	ErrorMessage string
}

// SyncResult is the caller-facing outcome of a pull, mirroring the SyncLog row.
type SyncResult struct {
	Status      SyncStatus   `json:"status"`
	Stage       string       `json:"stage,omitempty"`
	StartedAt   time.Time    `json:"started_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	Received    map[Kind]int `json:"entities_received_by_kind"`
	Error       string       `json:"error_message,omitempty"`
}
