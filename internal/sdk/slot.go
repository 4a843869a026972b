// Package sdk holds the plumbing shared by the provider SDK bindings: a slot
// that is filled once an SDK finishes loading, the background loader that
// fills it, OpenID discovery and the navigator that hands URLs to whoever
// drives the user's browser.
package sdk

import "sync"

// Slot holds a value that becomes available asynchronously. Adapters poll
// Load until it reports true.
type Slot[T any] struct {
	mu    sync.RWMutex
	v     T
	ok    bool
	ready chan struct{}
}

func NewSlot[T any]() *Slot[T] {
	return &Slot[T]{ready: make(chan struct{})}
}

// Fill stores v. Only the first call wins; it reports whether v was stored.
func (s *Slot[T]) Fill(v T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ok {
		return false
	}
	s.v, s.ok = v, true
	close(s.ready)
	return true
}

// Load returns the value and whether it has been filled.
func (s *Slot[T]) Load() (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v, s.ok
}

// Ready is closed once the slot is filled.
func (s *Slot[T]) Ready() <-chan struct{} { return s.ready }
