// Package keylock provides per-key mutual exclusion.
// This is part of the platform layer and contains no business logic.
package keylock

import "sync"

// Map hands out one mutex per key. Entries are reference counted and
// removed when the last holder unlocks, so the map only grows with the
// number of keys currently in use.
type Map[K comparable] struct {
	mu      sync.Mutex
	entries map[K]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// New creates an empty lock map.
func New[K comparable]() *Map[K] {
	return &Map[K]{entries: make(map[K]*entry)}
}

// Lock blocks until the lock for key is held and returns its release func.
func (m *Map[K]) Lock(key K) (unlock func()) {
	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok {
		e = &entry{}
		m.entries[key] = e
	}
	e.refs++
	m.mu.Unlock()

	e.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()
			m.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(m.entries, key)
			}
			m.mu.Unlock()
		})
	}
}

// Len returns the number of keys currently locked or waited on.
func (m *Map[K]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
