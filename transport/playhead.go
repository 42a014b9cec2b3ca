// Package transport provides host playhead sources: something that can be
// asked for the current transport position in seconds.
package transport

import "sync"

// PlayHead reports the host transport position. ok is false when no host
// position is available and the caller should fall back to its own clock.
type PlayHead interface {
	Position() (seconds float64, ok bool)
}

// Manual is a playhead set by hand (headless runs, tests).
type Manual struct {
	mu  sync.RWMutex
	pos float64
	ok  bool
}

func NewManual() *Manual {
	return &Manual{}
}

// Set fixes the position and makes it available.
func (m *Manual) Set(seconds float64) {
	m.mu.Lock()
	m.pos = seconds
	m.ok = true
	m.mu.Unlock()
}

// Clear makes the playhead unavailable.
func (m *Manual) Clear() {
	m.mu.Lock()
	m.ok = false
	m.mu.Unlock()
}

func (m *Manual) Position() (float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pos, m.ok
}
