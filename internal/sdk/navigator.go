package sdk

import (
	"context"
	"sync"
	"time"

	"github.com/dropDatabas3/chatpal/internal/domain/identity"
)

// Navigation asks the user agent to open URL on behalf of Provider.
type Navigation struct {
	Provider identity.Provider
	URL      string
	At       time.Time
}

// Navigator delivers navigations produced by an SDK during sign-in.
type Navigator interface {
	Navigate(ctx context.Context, n Navigation) error
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, n Navigation) error

func (f NavigatorFunc) Navigate(ctx context.Context, n Navigation) error { return f(ctx, n) }

// Relay fans navigations out to watchers of the matching provider and keeps
// the last one per provider for watchers that arrive late.
type Relay struct {
	mu       sync.Mutex
	nextID   int
	watchers map[identity.Provider]map[int]chan Navigation
	last     map[identity.Provider]Navigation
}

func NewRelay() *Relay {
	return &Relay{
		watchers: map[identity.Provider]map[int]chan Navigation{},
		last:     map[identity.Provider]Navigation{},
	}
}

// Navigate never blocks: a watcher that already holds a navigation keeps it.
func (r *Relay) Navigate(ctx context.Context, n Navigation) error {
	if n.At.IsZero() {
		n.At = time.Now()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last[n.Provider] = n
	for _, ch := range r.watchers[n.Provider] {
		select {
		case ch <- n:
		default:
		}
	}
	return nil
}

// Watch returns a channel receiving the next navigation for p.
func (r *Relay) Watch(p identity.Provider) (<-chan Navigation, func()) {
	ch := make(chan Navigation, 1)
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	if r.watchers[p] == nil {
		r.watchers[p] = map[int]chan Navigation{}
	}
	r.watchers[p][id] = ch
	r.mu.Unlock()
	return ch, func() {
		r.mu.Lock()
		delete(r.watchers[p], id)
		r.mu.Unlock()
	}
}

// Last returns the most recent navigation for p.
func (r *Relay) Last(p identity.Provider) (Navigation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.last[p]
	return n, ok
}
