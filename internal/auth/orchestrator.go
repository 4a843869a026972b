package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/chatpal/internal/domain/identity"
	"github.com/dropDatabas3/chatpal/internal/events"
	"github.com/dropDatabas3/chatpal/internal/observability/logger"
	"github.com/dropDatabas3/chatpal/internal/session"
)

// State is the orchestrator's coarse lifecycle.
type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateInitializing    State = "initializing"
	StateReady           State = "ready"
	StateAuthenticating  State = "authenticating"
	StateAuthenticated   State = "authenticated"
)

// States lists every state, e.g. to zero a gauge per state.
func States() []State {
	return []State{StateUnauthenticated, StateInitializing, StateReady, StateAuthenticating, StateAuthenticated}
}

// Subscriber is the side of the event bus the orchestrator listens on.
type Subscriber interface {
	Subscribe(events.Listener) (unsubscribe func())
}

// ProviderStatus describes a registered provider for the UI.
type ProviderStatus struct {
	Provider    identity.Provider
	Initialized bool
	Err         error
}

// Available reports whether the provider can be used for sign-in.
func (s ProviderStatus) Available() bool { return s.Err == nil }

// Orchestrator owns the adapters, resolves which provider is current and is
// the only auth object the rest of the application uses. Construct it once at
// the application root.
type Orchestrator struct {
	store    *session.Store
	adapters []Adapter
	byID     map[identity.Provider]Adapter

	mu          sync.RWMutex
	current     identity.Provider
	state       State
	initDone    map[identity.Provider]bool
	initErr     map[identity.Provider]error
	onState     func(State)
	onSignIn    func(identity.Provider, string)
	unsubscribe func()
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithStateObserver registers a hook called on every state transition.
func WithStateObserver(fn func(State)) Option {
	return func(o *Orchestrator) { o.onState = fn }
}

// Sign-in outcomes reported to WithSignInObserver.
const (
	OutcomeOK          = "ok"
	OutcomeFailed      = "failed"
	OutcomeInProgress  = "in_progress"
	OutcomeSuperseded  = "superseded"
	OutcomeUnavailable = "unavailable"
)

// WithSignInObserver registers a hook called once per SignIn with its outcome.
func WithSignInObserver(fn func(p identity.Provider, outcome string)) Option {
	return func(o *Orchestrator) { o.onSignIn = fn }
}

// New builds an orchestrator over adapters, kept in registration order, which
// is also the probing order. bus may be nil.
func New(store *session.Store, bus Subscriber, adapters []Adapter, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:    store,
		byID:     make(map[identity.Provider]Adapter, len(adapters)),
		state:    StateUnauthenticated,
		initDone: map[identity.Provider]bool{},
		initErr:  map[identity.Provider]error{},
	}
	for _, a := range adapters {
		if _, dup := o.byID[a.Provider()]; dup {
			continue
		}
		o.adapters = append(o.adapters, a)
		o.byID[a.Provider()] = a
	}
	for _, opt := range opts {
		opt(o)
	}
	if bus != nil {
		o.unsubscribe = bus.Subscribe(o.onEvent)
	}
	return o
}

// Close detaches the orchestrator from the event bus.
func (o *Orchestrator) Close() {
	if o.unsubscribe != nil {
		o.unsubscribe()
	}
}

// InitializeAll initializes every adapter concurrently and returns once all
// of them settled. A failing adapter is logged and excluded; the others are
// unaffected.
func (o *Orchestrator) InitializeAll(ctx context.Context) {
	log := logger.From(ctx).With(logger.Component("auth.orchestrator"), logger.Op("InitializeAll"))
	o.setState(StateInitializing)

	var g errgroup.Group
	for _, a := range o.adapters {
		g.Go(func() error {
			err := a.Initialize(ctx)
			o.mu.Lock()
			o.initDone[a.Provider()] = true
			o.initErr[a.Provider()] = err
			o.mu.Unlock()
			if err != nil {
				log.Warn("provider unavailable", logger.Provider(a.Provider().String()), logger.Err(err))
				return nil
			}
			log.Debug("provider initialized", logger.Provider(a.Provider().String()))
			return nil
		})
	}
	_ = g.Wait()

	if a, _ := o.resolve(ctx); a != nil && a.IsAuthenticated(ctx) {
		o.mu.Lock()
		o.current = a.Provider()
		o.mu.Unlock()
		o.setState(StateAuthenticated)
		return
	}
	o.setState(StateReady)
}

// CurrentUser returns the signed-in user, consulting the tagged provider
// first and then probing every usable adapter in registration order.
func (o *Orchestrator) CurrentUser(ctx context.Context) *identity.User {
	_, u := o.resolve(ctx)
	return u
}

// Session resolves once and returns the user plus its liveness.
func (o *Orchestrator) Session(ctx context.Context) (*identity.User, bool) {
	a, u := o.resolve(ctx)
	if a == nil {
		return nil, false
	}
	return u, a.IsAuthenticated(ctx)
}

// IsAuthenticated resolves like CurrentUser and delegates to the matched
// adapter's liveness check.
func (o *Orchestrator) IsAuthenticated(ctx context.Context) bool {
	a, _ := o.resolve(ctx)
	return a != nil && a.IsAuthenticated(ctx)
}

// SignIn delegates to the adapter for p and records it as current on success.
func (o *Orchestrator) SignIn(ctx context.Context, p identity.Provider) (*identity.User, error) {
	log := logger.From(ctx).With(
		logger.Component("auth.orchestrator"),
		logger.Op("SignIn"),
		logger.Provider(p.String()),
	)

	a, ok := o.byID[p]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrProviderNotRegistered, p)
	}
	if err := o.initError(p); err != nil {
		o.observeSignIn(p, OutcomeUnavailable)
		return nil, fmt.Errorf("auth: %s unavailable: %w", p, err)
	}

	prev := o.State()
	o.setState(StateAuthenticating)

	u, err := a.SignIn(ctx)
	if errors.Is(err, ErrSuperseded) {
		// el login que lo reemplazó es dueño del estado
		log.Debug("sign-in superseded by a newer one")
		o.observeSignIn(p, OutcomeSuperseded)
		return nil, err
	}
	if err != nil {
		if errors.Is(err, ErrSignInInProgress) {
			log.Debug("sign-in rejected, another one is pending")
			o.observeSignIn(p, OutcomeInProgress)
		} else {
			log.Info("sign-in failed", logger.Err(err))
			o.observeSignIn(p, OutcomeFailed)
		}
		if prev == StateAuthenticated && o.IsAuthenticated(ctx) {
			o.setState(StateAuthenticated)
		} else {
			o.setState(StateReady)
		}
		return nil, err
	}

	o.mu.Lock()
	o.current = p
	o.mu.Unlock()
	o.setState(StateAuthenticated)
	o.observeSignIn(p, OutcomeOK)
	log.Info("signed in", logger.UID(u.UID))
	return u, nil
}

func (o *Orchestrator) observeSignIn(p identity.Provider, outcome string) {
	if o.onSignIn != nil {
		o.onSignIn(p, outcome)
	}
}

// SignOut signs out the current provider, else the tagged one, else every
// adapter. If a session is still stored afterwards (a silent sign-in of
// another provider re-tagged it) that provider is signed out as well, and any
// leftover is cleared directly.
func (o *Orchestrator) SignOut(ctx context.Context) error {
	log := logger.From(ctx).With(logger.Component("auth.orchestrator"), logger.Op("SignOut"))

	var targets []Adapter
	o.mu.RLock()
	cur := o.current
	o.mu.RUnlock()

	if a, ok := o.byID[cur]; ok {
		targets = []Adapter{a}
	} else {
		tag, err := o.store.ActiveProvider(ctx)
		if err != nil {
			log.Warn("could not read active provider", logger.Err(err))
		}
		if a, ok := o.byID[tag]; ok {
			targets = []Adapter{a}
		} else {
			targets = o.adapters
		}
	}

	var errs []error
	done := make(map[identity.Provider]bool, len(o.adapters))
	for _, a := range targets {
		done[a.Provider()] = true
		if err := a.SignOut(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", a.Provider(), err))
		}
	}

	rec, err := o.store.Load(ctx)
	if err == nil {
		if a, ok := o.byID[rec.Provider]; ok && !done[rec.Provider] {
			log.Info("signing out re-tagged session", logger.Provider(rec.Provider.String()))
			if err := a.SignOut(ctx); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", a.Provider(), err))
			}
		}
		if _, err := o.store.Load(ctx); err == nil {
			if err := o.store.Clear(ctx); err != nil {
				errs = append(errs, err)
			}
		}
	}

	o.mu.Lock()
	o.current = ""
	o.mu.Unlock()
	o.setState(StateUnauthenticated)

	if len(errs) > 0 {
		log.Error("sign-out left errors", logger.Err(errors.Join(errs...)))
		return errors.Join(errs...)
	}
	return nil
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// Providers lists the registered providers in registration order.
func (o *Orchestrator) Providers() []ProviderStatus {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]ProviderStatus, 0, len(o.adapters))
	for _, a := range o.adapters {
		p := a.Provider()
		out = append(out, ProviderStatus{Provider: p, Initialized: o.initDone[p] && o.initErr[p] == nil, Err: o.initErr[p]})
	}
	return out
}

// Current returns the provider recorded as current, or "".
func (o *Orchestrator) Current() identity.Provider {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.current
}

func (o *Orchestrator) resolve(ctx context.Context) (Adapter, *identity.User) {
	tag, err := o.store.ActiveProvider(ctx)
	if err != nil {
		logger.From(ctx).Warn("could not read active provider",
			logger.Component("auth.orchestrator"), logger.Err(err))
	}
	if a, ok := o.byID[tag]; ok && o.initError(tag) == nil {
		if u := a.CurrentUser(ctx); u != nil {
			return a, u
		}
	}
	for _, a := range o.adapters {
		if a.Provider() == tag || o.initError(a.Provider()) != nil {
			continue
		}
		if u := a.CurrentUser(ctx); u != nil {
			return a, u
		}
	}
	return nil, nil
}

func (o *Orchestrator) initError(p identity.Provider) error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.initErr[p]
}

// onEvent follows sign-ins and sign-outs that happen outside SignIn/SignOut,
// e.g. a silent auto-select or an adapter signed out directly.
func (o *Orchestrator) onEvent(ev events.Event) {
	if _, ok := o.byID[ev.Provider]; !ok {
		return
	}
	switch ev.Type {
	case events.LoginSuccess:
		o.mu.Lock()
		o.current = ev.Provider
		o.mu.Unlock()
		o.setState(StateAuthenticated)
	case events.LogoutSuccess:
		o.mu.Lock()
		cleared := o.current == ev.Provider
		if cleared {
			o.current = ""
		}
		o.mu.Unlock()
		if cleared {
			o.setState(StateUnauthenticated)
		}
	}
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	changed := o.state != s
	o.state = s
	fn := o.onState
	o.mu.Unlock()
	if changed && fn != nil {
		fn(s)
	}
}
