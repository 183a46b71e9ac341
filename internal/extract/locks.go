package extract

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// lockTable grants exclusive per-video ownership to one extraction at a
// time. It is the authority for mutual exclusion: a database row stuck in
// "extracting" without an entry here belongs to a dead run and may be
// re-attempted.
type lockTable struct {
	mu   sync.Mutex
	held map[uuid.UUID]chan struct{}
}

func newLockTable() *lockTable {
	return &lockTable{held: make(map[uuid.UUID]chan struct{})}
}

// TryAcquire takes the lock for id, or reports false if it is already held.
func (l *lockTable) TryAcquire(id uuid.UUID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[id]; ok {
		return false
	}
	l.held[id] = make(chan struct{})
	return true
}

// Acquire blocks until the lock for id is available or ctx is done.
func (l *lockTable) Acquire(ctx context.Context, id uuid.UUID) error {
	for {
		l.mu.Lock()
		wait, ok := l.held[id]
		if !ok {
			l.held[id] = make(chan struct{})
			l.mu.Unlock()
			return nil
		}
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wait:
		}
	}
}

// Release frees the lock for id and wakes any waiters.
func (l *lockTable) Release(id uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if wait, ok := l.held[id]; ok {
		delete(l.held, id)
		close(wait)
	}
}
