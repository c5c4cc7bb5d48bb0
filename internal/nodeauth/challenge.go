package nodeauth

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinmesh/clinsync/internal/common"
)

// DefaultChallengeTTL bounds how long an issued nonce stays redeemable.
const DefaultChallengeTTL = 2 * time.Minute

type challenge struct {
	nodeID    uuid.UUID
	nonce     []byte
	issuedAt  time.Time
	expiresAt time.Time
	used      bool
}

// ChallengeStore tracks at most one pending challenge per channel. Redeeming
// burns the nonce whatever the verification outcome, and a burned nonce
// always reports "already used", never "expired" — the distinction matters
// for detecting replay.
type ChallengeStore struct {
	mu         sync.Mutex
	challenges map[uuid.UUID]*challenge
	ttl        time.Duration
	now        func() time.Time
}

func NewChallengeStore(ttl time.Duration) *ChallengeStore {
	if ttl <= 0 {
		ttl = DefaultChallengeTTL
	}
	return &ChallengeStore{
		challenges: make(map[uuid.UUID]*challenge),
		ttl:        ttl,
		now:        time.Now,
	}
}

// Issue stores a fresh nonce for the channel, replacing any unredeemed one.
func (s *ChallengeStore) Issue(channelID, nodeID uuid.UUID, nonce []byte) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	expires := now.Add(s.ttl)
	s.challenges[channelID] = &challenge{
		nodeID:    nodeID,
		nonce:     nonce,
		issuedAt:  now,
		expiresAt: expires,
	}
	return expires
}

// Redeem consumes the channel's pending challenge for the claimed node and
// returns its nonce. The challenge is marked used before any signature
// verification happens, so a failed authentication attempt burns it too.
func (s *ChallengeStore) Redeem(channelID, nodeID uuid.UUID) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.challenges[channelID]
	if !ok {
		return nil, common.ErrNoChallenge
	}
	if c.used {
		return nil, common.ErrChallengeUsed
	}
	c.used = true

	if s.now().After(c.expiresAt) {
		return nil, common.ErrChallengeExpired
	}
	if c.nodeID != nodeID {
		return nil, common.ErrNoChallenge
	}
	return c.nonce, nil
}

// EvictChannel voids any pending challenge when its channel closes; a
// challenge must not survive the channel it was issued on.
func (s *ChallengeStore) EvictChannel(channelID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.challenges, channelID)
}
