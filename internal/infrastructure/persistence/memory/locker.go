package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/nutriscan/tracker/internal/ports/outbound"
)

type lockEntry struct {
	sem  chan struct{}
	refs int
}

// Locker serialises work per user inside one process
type Locker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*lockEntry
}

var _ outbound.UserLocker = (*Locker)(nil)

// NewLocker creates an in-process user locker
func NewLocker() *Locker {
	return &Locker{locks: make(map[uuid.UUID]*lockEntry)}
}

// Lock blocks until the user's lock is free or ctx is done
func (l *Locker) Lock(ctx context.Context, userID uuid.UUID) (func(), error) {
	l.mu.Lock()
	e, ok := l.locks[userID]
	if !ok {
		e = &lockEntry{sem: make(chan struct{}, 1)}
		l.locks[userID] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(userID, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			l.release(userID, e)
		})
	}, nil
}

// release drops a reference and forgets idle entries.
func (l *Locker) release(userID uuid.UUID, e *lockEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, userID)
	}
}

// size reports the number of tracked users.
func (l *Locker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
