package state

import (
	"context"
	"strings"
	"sync"
)

// Locker serializes work per session id. Waiters are granted the lock in
// arrival order; different session ids never block each other.
type Locker struct {
	mu    sync.Mutex
	slots map[string]*lockSlot
}

type lockSlot struct {
	held    bool
	waiters []chan struct{}
}

func NewLocker() *Locker {
	return &Locker{slots: make(map[string]*lockSlot)}
}

// Lock blocks until the session is free or ctx is done. The returned func
// releases the lock and must be called exactly once.
func (l *Locker) Lock(ctx context.Context, sessionID string) (func(), error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrInvalidSession
	}

	l.mu.Lock()
	slot, ok := l.slots[sessionID]
	if !ok {
		slot = &lockSlot{}
		l.slots[sessionID] = slot
	}
	if !slot.held {
		slot.held = true
		l.mu.Unlock()
		return l.releaser(sessionID), nil
	}
	ready := make(chan struct{})
	slot.waiters = append(slot.waiters, ready)
	l.mu.Unlock()

	select {
	case <-ready:
		return l.releaser(sessionID), nil
	case <-ctx.Done():
		l.mu.Lock()
		for i, w := range slot.waiters {
			if w == ready {
				slot.waiters = append(slot.waiters[:i], slot.waiters[i+1:]...)
				l.mu.Unlock()
				return nil, ctx.Err()
			}
		}
		l.mu.Unlock()
		// ownership was handed over while we were giving up
		l.release(sessionID)
		return nil, ctx.Err()
	}
}

// Held reports whether anyone currently owns the session lock.
func (l *Locker) Held(sessionID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot, ok := l.slots[sessionID]
	return ok && slot.held
}

func (l *Locker) releaser(sessionID string) func() {
	var once sync.Once
	return func() {
		once.Do(func() { l.release(sessionID) })
	}
}

func (l *Locker) release(sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot, ok := l.slots[sessionID]
	if !ok {
		return
	}
	if len(slot.waiters) > 0 {
		next := slot.waiters[0]
		slot.waiters = slot.waiters[1:]
		close(next)
		return
	}
	delete(l.slots, sessionID)
}
