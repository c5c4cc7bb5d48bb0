// Package session implements the authenticated context layered on a
// channel: JWT tokens, capability checks, and the per-minute rate gate with
// class-sized budgets.
package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinmesh/clinsync/internal/models"
)

// DefaultTTL is the session lifetime. A session also dies with its channel,
// whichever comes first.
const DefaultTTL = time.Hour

// Class selects the rate budget of an endpoint. Sync endpoints get a
// materially higher budget because one pull legitimately issues hundreds of
// paginated calls per minute.
type Class string

const (
	ClassStandard Class = "standard"
	ClassSync     Class = "sync"
)

// Default per-minute budgets by class.
const (
	DefaultStandardBudget = 60
	DefaultSyncBudget     = 600
)

// Session is one authenticated, capability-scoped context. Capability is
// immutable once issued; the rate-window fields are guarded by the store.
type Session struct {
	Token      string
	NodeID     uuid.UUID
	ChannelID  uuid.UUID
	Capability models.Capability
	IssuedAt   time.Time
	ExpiresAt  time.Time

	windowStart time.Time
	windowCount int
}

// Expired reports whether the session lifetime has elapsed.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
