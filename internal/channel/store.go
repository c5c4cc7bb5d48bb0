package channel

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinmesh/clinsync/internal/common"
	"github.com/clinmesh/clinsync/internal/logging"
)

// Store is the channel registry: lookup, insert, evict. The in-memory
// implementation below serves a single-process node; any concurrent
// key-value store can stand in behind the same interface.
type Store interface {
	Put(c *Channel)
	// Get returns the channel or fails closed: unknown and expired channels
	// are indistinguishable from absent ones apart from the sentinel error.
	Get(id uuid.UUID) (*Channel, error)
	Evict(id uuid.UUID)
}

// MemoryStore is a mutex-guarded map with lazy expiry on Get and an optional
// background reaper. OnEvict, when set, runs for every eviction (explicit
// close, lazy expiry, reaper) so dependent state such as sessions and
// pending challenges dies with the channel.
type MemoryStore struct {
	mu       sync.RWMutex
	channels map[uuid.UUID]*Channel

	// OnEvict must be set before the store is shared.
	OnEvict func(id uuid.UUID)

	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		channels: make(map[uuid.UUID]*Channel),
		now:      time.Now,
	}
}

func (s *MemoryStore) Put(c *Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels[c.ID] = c
}

func (s *MemoryStore) Get(id uuid.UUID) (*Channel, error) {
	s.mu.RLock()
	c, ok := s.channels[id]
	s.mu.RUnlock()

	if !ok {
		return nil, common.ErrUnknownChannel
	}
	if c.Expired(s.now()) {
		s.Evict(id)
		return nil, common.ErrChannelExpired
	}
	return c, nil
}

func (s *MemoryStore) Evict(id uuid.UUID) {
	s.mu.Lock()
	_, ok := s.channels[id]
	delete(s.channels, id)
	s.mu.Unlock()

	if ok && s.OnEvict != nil {
		s.OnEvict(id)
	}
}

// StartReaper evicts expired channels every interval until ctx is done.
func (s *MemoryStore) StartReaper(ctx context.Context, interval time.Duration, logger logging.Logger) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, id := range s.expired() {
					logger.Debug(ctx, "reaping expired channel", "channel_id", id)
					s.Evict(id)
				}
			}
		}
	}()
}

func (s *MemoryStore) expired() []uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	var ids []uuid.UUID
	for id, c := range s.channels {
		if c.Expired(now) {
			ids = append(ids, id)
		}
	}
	return ids
}
