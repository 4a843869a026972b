// Package events is the session event bus. Provider adapters publish sign-in
// and sign-out outcomes that happen outside any caller's stack (a credential
// callback from the identity SDK, a silent auto-select on page load); the
// orchestrator and the HTTP event stream subscribe.
package events

import (
	"sync"
	"time"

	"github.com/dropDatabas3/chatpal/internal/domain/identity"
	"github.com/dropDatabas3/chatpal/internal/observability/logger"
)

// Type is the kind of notification.
type Type string

const (
	LoginSuccess  Type = "LoginSuccess"
	LoginError    Type = "LoginError"
	LogoutSuccess Type = "LogoutSuccess"
)

// Event is one notification. User is set for LoginSuccess, Err for LoginError.
type Event struct {
	Type     Type
	Provider identity.Provider
	User     *identity.User
	Err      error
	At       time.Time
}

// Name is the UI-facing event name, e.g. "googleLoginSuccess".
func (e Event) Name() string {
	return string(e.Provider) + string(e.Type)
}

// Listener receives events synchronously on the dispatching goroutine.
type Listener func(Event)

// Publisher is the side of the bus adapters depend on.
type Publisher interface {
	Publish(Event)
}

// Bus delivers events to listeners in emission order.
//
// Publish appends to a queue. If no dispatch is running, the caller becomes
// the dispatcher and drains the queue; otherwise it returns and the running
// dispatcher delivers the event after the ones before it. Each event goes to
// the listeners registered when its dispatch starts, so a listener added while
// an event is being delivered does not see that event.
type Bus struct {
	mu          sync.Mutex
	nextID      uint64
	listeners   []entry
	queue       []Event
	dispatching bool

	now     func() time.Time
	onEvent func(Event)
}

type entry struct {
	id uint64
	fn Listener
}

// Option configures a Bus.
type Option func(*Bus)

// WithClock overrides the timestamp source for events published without At.
func WithClock(now func() time.Time) Option {
	return func(b *Bus) { b.now = now }
}

// WithObserver registers a hook called once per published event before
// delivery (metrics).
func WithObserver(fn func(Event)) Option {
	return func(b *Bus) { b.onEvent = fn }
}

// NewBus creates an empty bus.
func NewBus(opts ...Option) *Bus {
	b := &Bus{now: time.Now}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Subscribe registers fn and returns a function that removes it.
func (b *Bus) Subscribe(fn Listener) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.listeners = append(b.listeners, entry{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, e := range b.listeners {
				if e.id == id {
					b.listeners = append(b.listeners[:i:i], b.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// Publish enqueues ev and delivers it unless another goroutine is already
// draining the queue.
func (b *Bus) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = b.now()
	}

	b.mu.Lock()
	b.queue = append(b.queue, ev)
	if b.dispatching {
		b.mu.Unlock()
		return
	}
	b.dispatching = true
	b.mu.Unlock()

	for {
		b.mu.Lock()
		if len(b.queue) == 0 {
			b.dispatching = false
			b.mu.Unlock()
			return
		}
		next := b.queue[0]
		b.queue = b.queue[1:]
		snapshot := make([]entry, len(b.listeners))
		copy(snapshot, b.listeners)
		b.mu.Unlock()

		if b.onEvent != nil {
			b.onEvent(next)
		}
		for _, e := range snapshot {
			deliver(e.fn, next)
		}
	}
}

// Len reports the number of registered listeners.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}

func deliver(fn Listener, ev Event) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.L().Error("event listener panicked",
				logger.Component("events"),
				logger.Event(ev.Name()),
				logger.Any("panic", rec),
			)
		}
	}()
	fn(ev)
}
