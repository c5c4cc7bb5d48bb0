package models

import (
	"time"

	"github.com/google/uuid"
)

// KindStat summarizes one entity kind inside a manifest. TotalBytes is only
// populated for recordings.
type KindStat struct {
	Count        int64      `json:"count"`
	LatestUpdate *time.Time `json:"latest_update,omitempty"`
	TotalBytes   int64      `json:"total_bytes,omitempty"`
}

// SyncManifest is a transient snapshot of a node's syncable data volume,
// generated on request for preview and watermarking. It is never persisted.
type SyncManifest struct {
	NodeID      uuid.UUID         `json:"node_id"`
	NodeName    string            `json:"node_name"`
	GeneratedAt time.Time         `json:"generated_at"`
	Since       *time.Time        `json:"since,omitempty"`
	Kinds       map[Kind]KindStat `json:"kinds"`
}

// SyncPayload is the assembled result of one pull: every fetched entity in
// dependency order plus the manifest generation time, which becomes the next
// watermark on successful import.
type SyncPayload struct {
	GeneratedAt time.Time
	Entities    map[Kind][]Syncable
}

// Count returns the number of fetched entities per kind.
func (p *SyncPayload) Count() map[Kind]int {
	counts := make(map[Kind]int, len(p.Entities))
	for k, v := range p.Entities {
		counts[k] = len(v)
	}
	return counts
}
