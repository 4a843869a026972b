package auth_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/chatpal/internal/auth"
	"github.com/dropDatabas3/chatpal/internal/cache"
	"github.com/dropDatabas3/chatpal/internal/domain/identity"
	"github.com/dropDatabas3/chatpal/internal/events"
	"github.com/dropDatabas3/chatpal/internal/session"
)

// fakeAdapter persists through a real Binding and simulates the SDK with
// knobs: how long init takes, whether it ever loads, the user sign-in returns.
type fakeAdapter struct {
	provider identity.Provider
	binding  *auth.Binding
	bus      events.Publisher

	initDelay time.Duration
	neverLoad bool
	user      identity.User
	signInErr error
	live      bool

	mu       sync.Mutex
	ready    bool
	signOuts int
}

func newFake(p identity.Provider, store *session.Store, bus events.Publisher) *fakeAdapter {
	return &fakeAdapter{
		provider: p,
		binding:  auth.NewBinding(p, store),
		bus:      bus,
		user:     identity.User{UID: "uid-" + string(p), Provider: p},
		live:     true,
	}
}

func (f *fakeAdapter) Provider() identity.Provider { return f.provider }

func (f *fakeAdapter) Initialize(ctx context.Context) error {
	_, err := auth.WaitForSDK(ctx, func() (bool, bool) {
		return true, !f.neverLoad
	}, 5*time.Millisecond, 100*time.Millisecond)
	if err != nil {
		return err
	}
	time.Sleep(f.initDelay)
	f.mu.Lock()
	f.ready = true
	f.mu.Unlock()
	return nil
}

func (f *fakeAdapter) SignIn(ctx context.Context) (*identity.User, error) {
	if err := f.Initialize(ctx); err != nil {
		return nil, err
	}
	if f.signInErr != nil {
		return nil, auth.SignInFailed(f.provider, f.signInErr)
	}
	u := f.user
	if err := f.binding.Persist(ctx, u, "cred-"+string(f.provider)); err != nil {
		return nil, err
	}
	return &u, nil
}

func (f *fakeAdapter) SignOut(ctx context.Context) error {
	f.mu.Lock()
	f.signOuts++
	f.mu.Unlock()
	cleared, err := f.binding.Clear(ctx)
	if cleared && f.bus != nil {
		f.bus.Publish(events.Event{Type: events.LogoutSuccess, Provider: f.provider})
	}
	return err
}

func (f *fakeAdapter) CurrentUser(ctx context.Context) *identity.User {
	return f.binding.CurrentUser(ctx)
}

func (f *fakeAdapter) IsAuthenticated(ctx context.Context) bool {
	return f.CurrentUser(ctx) != nil && f.live
}

type fixture struct {
	kv     cache.Client
	store  *session.Store
	bus    *events.Bus
	google *fakeAdapter
	kakao  *fakeAdapter
	orch   *auth.Orchestrator
	states []auth.State
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{kv: cache.NewMemory("chatpal"), bus: events.NewBus()}
	f.store = session.NewStore(f.kv)
	f.google = newFake(identity.ProviderGoogle, f.store, f.bus)
	f.kakao = newFake(identity.ProviderKakao, f.store, f.bus)
	var mu sync.Mutex
	f.orch = auth.New(f.store, f.bus, []auth.Adapter{f.google, f.kakao},
		auth.WithStateObserver(func(s auth.State) {
			mu.Lock()
			f.states = append(f.states, s)
			mu.Unlock()
		}))
	t.Cleanup(f.orch.Close)
	return f
}

func (f *fixture) keysLeft(t *testing.T) []string {
	t.Helper()
	var left []string
	for _, k := range []string{session.KeyCredential, session.KeyUser, session.KeyActiveProvider} {
		ok, err := f.kv.Exists(context.Background(), k)
		require.NoError(t, err)
		if ok {
			left = append(left, k)
		}
	}
	return left
}

func TestOrchestrator_SignInThenOtherProviderOverwritesTag(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.google.user = identity.User{UID: "123", Email: identity.Opt("a@x.com"), Provider: identity.ProviderGoogle}

	u, err := f.orch.SignIn(ctx, identity.ProviderGoogle)
	require.NoError(t, err)
	got := f.orch.CurrentUser(ctx)
	require.NotNil(t, got)
	assert.True(t, u.Equal(*got))
	assert.Equal(t, identity.ProviderGoogle, f.orch.Current())

	_, err = f.orch.SignIn(ctx, identity.ProviderKakao)
	require.NoError(t, err)

	got = f.orch.CurrentUser(ctx)
	require.NotNil(t, got)
	assert.Equal(t, identity.ProviderKakao, got.Provider)
	assert.Nil(t, f.google.CurrentUser(ctx))
	assert.Equal(t, auth.StateAuthenticated, f.orch.State())
}

func TestOrchestrator_SignOutLeavesNothingBehind(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.orch.SignIn(ctx, identity.ProviderKakao)
	require.NoError(t, err)

	require.NoError(t, f.orch.SignOut(ctx))

	assert.False(t, f.orch.IsAuthenticated(ctx))
	assert.False(t, f.google.IsAuthenticated(ctx))
	assert.False(t, f.kakao.IsAuthenticated(ctx))
	assert.Empty(t, f.keysLeft(t))
	assert.Equal(t, auth.StateUnauthenticated, f.orch.State())
	assert.Equal(t, 1, f.kakao.signOuts)
	assert.Equal(t, 0, f.google.signOuts)
}

func TestOrchestrator_SignOutFallsBackToTagThenEveryAdapter(t *testing.T) {
	ctx := context.Background()

	t.Run("tag", func(t *testing.T) {
		f := newFixture(t)
		// session written by a previous process: no current provider yet
		require.NoError(t, f.store.Save(ctx, session.Record{
			Credential: "c", User: identity.User{UID: "1", Provider: identity.ProviderKakao}, Provider: identity.ProviderKakao,
		}))
		require.NoError(t, f.orch.SignOut(ctx))
		assert.Equal(t, 1, f.kakao.signOuts)
		assert.Equal(t, 0, f.google.signOuts)
		assert.Empty(t, f.keysLeft(t))
	})

	t.Run("every adapter", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.orch.SignOut(ctx))
		assert.Equal(t, 1, f.kakao.signOuts)
		assert.Equal(t, 1, f.google.signOuts)
	})
}

func TestOrchestrator_SignOutCatchesRetaggedSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.orch.SignIn(ctx, identity.ProviderGoogle)
	require.NoError(t, err)

	// kakao re-tags the store behind the orchestrator's back without an event
	require.NoError(t, f.kakao.binding.Persist(ctx, f.kakao.user, "cred-kakao"))

	require.NoError(t, f.orch.SignOut(ctx))
	assert.Equal(t, 1, f.google.signOuts)
	assert.Equal(t, 1, f.kakao.signOuts)
	assert.Empty(t, f.keysLeft(t))
}

func TestOrchestrator_InitializeAllIsBestEffort(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.google.initDelay = 10 * time.Millisecond
	f.kakao.neverLoad = true

	start := time.Now()
	f.orch.InitializeAll(ctx)
	assert.Less(t, time.Since(start), 2*time.Second)

	status := f.orch.Providers()
	require.Len(t, status, 2)
	assert.Equal(t, identity.ProviderGoogle, status[0].Provider)
	assert.True(t, status[0].Available())
	assert.True(t, status[0].Initialized)
	assert.False(t, status[1].Available())
	assert.ErrorIs(t, status[1].Err, auth.ErrInitTimeout)
	assert.Equal(t, auth.StateReady, f.orch.State())

	_, err := f.orch.SignIn(ctx, identity.ProviderGoogle)
	require.NoError(t, err)

	_, err = f.orch.SignIn(ctx, identity.ProviderKakao)
	assert.ErrorIs(t, err, auth.ErrInitTimeout)

	// even with a kakao session on disk the failed adapter stays out
	require.NoError(t, f.store.Save(ctx, session.Record{
		Credential: "c", User: identity.User{UID: "k", Provider: identity.ProviderKakao}, Provider: identity.ProviderKakao,
	}))
	assert.False(t, f.orch.IsAuthenticated(ctx))
	assert.Nil(t, f.orch.CurrentUser(ctx))
}

func TestOrchestrator_InitializeAllRestoresSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Save(ctx, session.Record{
		Credential: "c", User: identity.User{UID: "1", Provider: identity.ProviderGoogle}, Provider: identity.ProviderGoogle,
	}))

	f.orch.InitializeAll(ctx)

	assert.Equal(t, auth.StateAuthenticated, f.orch.State())
	assert.Equal(t, identity.ProviderGoogle, f.orch.Current())
	assert.Equal(t, []auth.State{auth.StateInitializing, auth.StateAuthenticated}, f.states)
}

func TestOrchestrator_CorruptTagIsClearedOnRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.kv.SetMany(ctx, map[string]string{
		session.KeyActiveProvider: "google",
		session.KeyCredential:     "cred",
	}))

	assert.Nil(t, f.orch.CurrentUser(ctx))
	assert.Empty(t, f.keysLeft(t))
	assert.Nil(t, f.orch.CurrentUser(ctx))
}

func TestOrchestrator_ProbesWhenTagMissing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Save(ctx, session.Record{
		Credential: "c", User: identity.User{UID: "9", Provider: identity.ProviderKakao}, Provider: identity.ProviderKakao,
	}))

	u := f.orch.CurrentUser(ctx)
	require.NotNil(t, u)
	assert.Equal(t, "9", u.UID)

	f.kakao.live = false
	assert.False(t, f.orch.IsAuthenticated(ctx))
}

func TestOrchestrator_UnknownProvider(t *testing.T) {
	f := newFixture(t)
	_, err := f.orch.SignIn(context.Background(), identity.Provider("github"))
	assert.ErrorIs(t, err, auth.ErrProviderNotRegistered)
}

func TestOrchestrator_FailedSignInReturnsToReady(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.google.signInErr = errors.New("user closed the prompt")

	_, err := f.orch.SignIn(ctx, identity.ProviderGoogle)
	assert.ErrorIs(t, err, auth.ErrSignInFailed)
	assert.Equal(t, auth.StateReady, f.orch.State())
	assert.Empty(t, f.keysLeft(t))
	assert.Equal(t, []auth.State{auth.StateAuthenticating, auth.StateReady}, f.states)
}

func TestOrchestrator_SupersededSignInLeavesStateToNewerCall(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.google.signInErr = auth.ErrSuperseded

	_, err := f.orch.SignIn(ctx, identity.ProviderGoogle)
	assert.ErrorIs(t, err, auth.ErrSignInFailed)
	assert.ErrorIs(t, err, auth.ErrSuperseded)
	assert.Equal(t, auth.StateAuthenticating, f.orch.State())
	assert.Equal(t, []auth.State{auth.StateAuthenticating}, f.states)
}

func TestOrchestrator_FollowsBroadcastSignIn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.kakao.binding.Persist(ctx, f.kakao.user, "cred"))

	f.bus.Publish(events.Event{Type: events.LoginSuccess, Provider: identity.ProviderKakao, User: &f.kakao.user})
	assert.Equal(t, identity.ProviderKakao, f.orch.Current())
	assert.Equal(t, auth.StateAuthenticated, f.orch.State())

	f.bus.Publish(events.Event{Type: events.LogoutSuccess, Provider: identity.ProviderGoogle})
	assert.Equal(t, identity.ProviderKakao, f.orch.Current())

	f.bus.Publish(events.Event{Type: events.LogoutSuccess, Provider: identity.ProviderKakao})
	assert.Equal(t, identity.Provider(""), f.orch.Current())
}

func TestOrchestrator_SignInObserverAndSession(t *testing.T) {
	kv := cache.NewMemory("chatpal")
	store := session.NewStore(kv)
	bus := events.NewBus()
	google := newFake(identity.ProviderGoogle, store, bus)
	kakao := newFake(identity.ProviderKakao, store, bus)
	kakao.signInErr = errors.New("consent denied")

	var outcomes []string
	orch := auth.New(store, bus, []auth.Adapter{google, kakao},
		auth.WithSignInObserver(func(p identity.Provider, outcome string) {
			outcomes = append(outcomes, string(p)+":"+outcome)
		}))
	t.Cleanup(orch.Close)
	ctx := context.Background()

	u, live := orch.Session(ctx)
	assert.Nil(t, u)
	assert.False(t, live)

	_, err := orch.SignIn(ctx, identity.ProviderKakao)
	require.Error(t, err)
	_, err = orch.SignIn(ctx, identity.ProviderGoogle)
	require.NoError(t, err)

	u, live = orch.Session(ctx)
	require.NotNil(t, u)
	assert.Equal(t, "uid-google", u.UID)
	assert.True(t, live)

	google.live = false
	_, live = orch.Session(ctx)
	assert.False(t, live)

	assert.Equal(t, []string{"kakao:failed", "google:ok"}, outcomes)
}
