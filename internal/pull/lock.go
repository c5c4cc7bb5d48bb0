package pull

import (
	"sync"

	"github.com/google/uuid"
)

// nodeLocks is the advisory per-remote-node lock. Two concurrent attempts
// against the same node are transactionally safe but wasteful, so the second
// one is rejected outright rather than queued.
type nodeLocks struct {
	mu     sync.Mutex
	active map[uuid.UUID]struct{}
}

func newNodeLocks() *nodeLocks {
	return &nodeLocks{active: make(map[uuid.UUID]struct{})}
}

func (l *nodeLocks) tryAcquire(nodeID uuid.UUID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.active[nodeID]; busy {
		return false
	}
	l.active[nodeID] = struct{}{}
	return true
}

func (l *nodeLocks) release(nodeID uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.active, nodeID)
}
