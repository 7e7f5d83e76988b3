// Package lock provides per-key mutual exclusion, in process or across
// instances through Redis. Keys are scoped per user, for example
// "channels:<user>" or "sync:<user>".
package lock

import (
	"context"
	"sync"
)

// Locker acquires named locks. The returned unlock function is safe to call
// more than once.
type Locker interface {
	// Lock blocks until the lock is held or ctx is done
	Lock(ctx context.Context, key string) (unlock func(), err error)
	// TryLock acquires the lock only if it is free
	TryLock(ctx context.Context, key string) (unlock func(), ok bool, err error)
}

// Memory is a process-local Locker
type Memory struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewMemory creates a process-local Locker
func NewMemory() *Memory {
	return &Memory{slots: make(map[string]chan struct{})}
}

func (m *Memory) slot(key string) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch, ok := m.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		m.slots[key] = ch
	}
	return ch
}

func (m *Memory) Lock(ctx context.Context, key string) (func(), error) {
	ch := m.slot(key)
	select {
	case ch <- struct{}{}:
		return releaser(ch), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *Memory) TryLock(_ context.Context, key string) (func(), bool, error) {
	ch := m.slot(key)
	select {
	case ch <- struct{}{}:
		return releaser(ch), true, nil
	default:
		return nil, false, nil
	}
}

func releaser(ch chan struct{}) func() {
	var once sync.Once
	return func() {
		once.Do(func() { <-ch })
	}
}
