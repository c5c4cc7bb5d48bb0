package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinmesh/clinsync/internal/channel"
	"github.com/clinmesh/clinsync/internal/common"
	"github.com/clinmesh/clinsync/internal/models"
)

// Gate is the combined session and rate check guarding every authenticated
// endpoint: token signature, server-side session liveness, channel liveness,
// capability, and the per-minute budget of the endpoint's class — in that
// order, all failing closed.
type Gate struct {
	store     Store
	channels  channel.Store
	secretKey []byte
	ttl       time.Duration

	budgets map[Class]int
}

func NewGate(store Store, channels channel.Store, secretKey []byte, ttl time.Duration) *Gate {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Gate{
		store:     store,
		channels:  channels,
		secretKey: secretKey,
		ttl:       ttl,
		budgets: map[Class]int{
			ClassStandard: DefaultStandardBudget,
			ClassSync:     DefaultSyncBudget,
		},
	}
}

// SetBudget overrides the per-minute budget of one class.
func (g *Gate) SetBudget(class Class, budget int) {
	g.budgets[class] = budget
}

// Issue mints a token and registers the session. Capability comes from the
// caller's trust registry row, never from the request.
func (g *Gate) Issue(nodeID, channelID uuid.UUID, capability models.Capability) (*Session, error) {
	token, err := MintToken(nodeID, channelID, capability, g.secretKey, g.ttl)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	sess := &Session{
		Token:      token,
		NodeID:     nodeID,
		ChannelID:  channelID,
		Capability: capability,
		IssuedAt:   now,
		ExpiresAt:  now.Add(g.ttl),
	}
	g.store.Put(sess)
	return sess, nil
}

// CheckAndRecord validates the token against the required capability and
// records one call against the class budget. It returns the session on
// success so handlers can attribute work to the calling node.
func (g *Gate) CheckAndRecord(token string, required models.Capability, class Class) (*Session, error) {
	if _, err := ParseToken(token, g.secretKey); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidToken, err)
	}

	sess, err := g.store.Get(token)
	if err != nil {
		return nil, err
	}

	// The channel lookup fails closed on expiry, so an orphaned session is
	// unusable even before the reaper evicts it.
	if _, err := g.channels.Get(sess.ChannelID); err != nil {
		return nil, fmt.Errorf("session channel: %w", err)
	}

	if !sess.Capability.Covers(required) {
		return nil, common.ErrUnauthorized
	}

	budget, ok := g.budgets[class]
	if !ok {
		budget = g.budgets[ClassStandard]
	}
	if err := g.store.RecordCall(sess, budget); err != nil {
		return nil, err
	}

	return sess, nil
}
