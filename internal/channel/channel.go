// Package channel implements the ephemeral security context between two
// nodes: X25519 key agreement on open, a TTL-bound registry of derived
// symmetric keys, and a reaper for expired entries.
package channel

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL is how long a channel stays usable after establishment.
const DefaultTTL = 30 * time.Minute

// Channel is one established security context. The symmetric Key never
// crosses the wire and is never persisted; losing the process loses the
// channel, which is the intended forward-secrecy property.
type Channel struct {
	ID        uuid.UUID
	Key       []byte
	CreatedAt time.Time
	ExpiresAt time.Time

	mu sync.Mutex
	// identifiedNodeID is set once the peer has presented an identity that
	// the local registry accepted. The challenge and authenticate steps
	// require it to match. Requests on the same channel may run
	// concurrently, so access goes through the guarded accessors.
	identifiedNodeID uuid.UUID
}

// SetIdentified pins the accepted peer identity to the channel.
func (c *Channel) SetIdentified(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identifiedNodeID = id
}

// IdentifiedNode returns the pinned peer identity, or uuid.Nil before any
// identify has succeeded.
func (c *Channel) IdentifiedNode() uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identifiedNodeID
}

// Expired reports whether the channel TTL has elapsed.
func (c *Channel) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
