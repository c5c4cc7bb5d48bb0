package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinmesh/clinsync/internal/common"
)

// Store tracks live sessions by token. EvictChannel removes every session
// riding a channel, enforcing "a session cannot outlive its channel".
// RecordCall counts one call against the session's per-minute budget.
type Store interface {
	Put(s *Session)
	Get(token string) (*Session, error)
	Evict(token string)
	EvictChannel(channelID uuid.UUID)
	RecordCall(s *Session, budget int) error
}

var _ Store = (*MemoryStore)(nil)

// MemoryStore is the in-process session registry. The mutex also guards the
// rate-window fields inside each Session.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session

	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

func (s *MemoryStore) Put(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.Token] = sess
}

// Get fails closed on unknown and expired tokens alike.
func (s *MemoryStore) Get(token string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return nil, common.ErrInvalidToken
	}
	if sess.Expired(s.now()) {
		delete(s.sessions, token)
		return nil, common.ErrSessionExpired
	}
	return sess, nil
}

func (s *MemoryStore) Evict(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
}

func (s *MemoryStore) EvictChannel(channelID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, sess := range s.sessions {
		if sess.ChannelID == channelID {
			delete(s.sessions, token)
		}
	}
}

// RecordCall applies the fixed one-minute window: the counter resets when
// the window rolls over, and the call is rejected once budget is exhausted.
func (s *MemoryStore) RecordCall(sess *Session, budget int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	window := s.now().Truncate(time.Minute)
	if !sess.windowStart.Equal(window) {
		sess.windowStart = window
		sess.windowCount = 0
	}
	if sess.windowCount >= budget {
		return common.ErrRateLimited
	}
	sess.windowCount++
	return nil
}
