package kakao

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
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

type fakeSDK struct {
	mu          sync.Mutex
	initialized bool
	initKey     string
	initCalls   int
	scopes      string
	token       string

	loginErr   error
	meErr      error
	logoutErr  error
	restoreErr error
	info       *UserInfo
	block      chan struct{}
	logouts    int
	restored   []string
}

func (f *fakeSDK) IsInitialized() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.initialized
}

func (f *fakeSDK) Init(appKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initialized = true
	f.initKey = appKey
	f.initCalls++
	return nil
}

func (f *fakeSDK) Login(ctx context.Context, scopes string) (*AuthResponse, error) {
	f.mu.Lock()
	f.scopes = scopes
	block, err := f.block, f.loginErr
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.token = "access-1"
	f.mu.Unlock()
	return &AuthResponse{AccessToken: "access-1", TokenType: "bearer", ExpiresIn: 21599}, nil
}

func (f *fakeSDK) Me(ctx context.Context, accessToken string) (*UserInfo, error) {
	if f.meErr != nil {
		return nil, f.meErr
	}
	return f.info, nil
}

func (f *fakeSDK) AccessToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

func (f *fakeSDK) Restore(ctx context.Context, accessToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restored = append(f.restored, accessToken)
	if f.restoreErr != nil {
		return f.restoreErr
	}
	f.token = accessToken
	return nil
}

func (f *fakeSDK) Logout(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logouts++
	f.token = ""
	return f.logoutErr
}

func fullProfile() *UserInfo {
	return &UserInfo{
		ID: 4242,
		KakaoAccount: &KakaoAccount{
			Email:   "k@x.com",
			Profile: &Profile{Nickname: "Minji", ProfileImageURL: "https://k/img.png"},
		},
	}
}

type harness struct {
	adapter *Adapter
	sdk     *fakeSDK
	store   *session.Store
	bus     *events.Bus
}

func newHarness(t *testing.T, opts ...func(*Options)) *harness {
	t.Helper()
	sdk := &fakeSDK{info: fullProfile()}
	store := session.NewStore(cache.NewMemory("test"))
	bus := events.NewBus()
	o := Options{
		AppKey:       "app-key",
		Loader:       func() (SDK, bool) { return sdk, true },
		Store:        store,
		Bus:          bus,
		PollInterval: time.Millisecond,
		InitTimeout:  50 * time.Millisecond,
	}
	for _, fn := range opts {
		fn(&o)
	}
	return &harness{adapter: New(o), sdk: sdk, store: store, bus: bus}
}

func TestInitialize_InitsOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.adapter.Initialize(ctx))
	require.NoError(t, h.adapter.Initialize(ctx))
	assert.Equal(t, 1, h.sdk.initCalls)
	assert.Equal(t, "app-key", h.sdk.initKey)
}

func TestInitialize_SkipsInitWhenAlreadyInitialized(t *testing.T) {
	h := newHarness(t)
	h.sdk.initialized = true
	require.NoError(t, h.adapter.Initialize(context.Background()))
	assert.Equal(t, 0, h.sdk.initCalls)
}

func TestInitialize_WaitsForLateSDK(t *testing.T) {
	sdk := &fakeSDK{}
	var ready atomic.Bool
	a := New(Options{
		Store: session.NewStore(cache.NewMemory("")),
		Loader: func() (SDK, bool) {
			if !ready.Load() {
				return nil, false
			}
			return sdk, true
		},
		PollInterval: time.Millisecond,
		InitTimeout:  time.Second,
	})
	time.AfterFunc(10*time.Millisecond, func() { ready.Store(true) })
	require.NoError(t, a.Initialize(context.Background()))
	assert.Equal(t, 1, sdk.initCalls)
}

func TestSignIn_TwoStages(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	var names []string
	h.bus.Subscribe(func(ev events.Event) { names = append(names, ev.Name()) })

	u, err := h.adapter.SignIn(ctx)
	require.NoError(t, err)

	assert.Equal(t, DefaultScopes, h.sdk.scopes)
	assert.Equal(t, "4242", u.UID)
	assert.Equal(t, "Minji", identity.Deref(u.DisplayName))
	assert.Equal(t, "k@x.com", identity.Deref(u.Email))
	assert.Equal(t, "https://k/img.png", identity.Deref(u.AvatarURL))
	assert.Equal(t, identity.ProviderKakao, u.Provider)

	rec, err := h.store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "access-1", rec.Credential)
	assert.True(t, h.adapter.IsAuthenticated(ctx))
	assert.Equal(t, []string{"kakaoLoginSuccess"}, names)
}

func TestSignIn_StageFailuresPersistNothing(t *testing.T) {
	cases := map[string]func(*fakeSDK){
		"authorize":  func(f *fakeSDK) { f.loginErr = errors.New("user cancelled") },
		"profile":    func(f *fakeSDK) { f.meErr = errors.New("401 from /v2/user/me") },
		"no profile": func(f *fakeSDK) { f.info = nil },
	}
	for name, breakIt := range cases {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()
			breakIt(h.sdk)
			var got []events.Event
			h.bus.Subscribe(func(ev events.Event) { got = append(got, ev) })

			_, err := h.adapter.SignIn(ctx)
			assert.ErrorIs(t, err, auth.ErrSignInFailed)

			_, err = h.store.Load(ctx)
			assert.ErrorIs(t, err, session.ErrNoSession)
			require.Len(t, got, 1)
			assert.Equal(t, "kakaoLoginError", got[0].Name())
		})
	}
}

func TestSignIn_RetrySupersedesAbandonedAuthorization(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.adapter.Initialize(ctx))
	h.sdk.block = make(chan struct{})
	var names []string
	var mu sync.Mutex
	h.bus.Subscribe(func(ev events.Event) {
		mu.Lock()
		names = append(names, ev.Name())
		mu.Unlock()
	})

	done := make(chan error, 1)
	go func() {
		_, err := h.adapter.SignIn(ctx)
		done <- err
	}()
	require.Eventually(t, func() bool {
		h.adapter.mu.Lock()
		defer h.adapter.mu.Unlock()
		return h.adapter.pending != nil
	}, time.Second, time.Millisecond)

	retry := make(chan error, 1)
	go func() {
		_, err := h.adapter.SignIn(ctx)
		retry <- err
	}()

	err := <-done
	assert.ErrorIs(t, err, auth.ErrSignInFailed)
	assert.ErrorIs(t, err, auth.ErrSuperseded)

	close(h.sdk.block)
	require.NoError(t, <-retry)

	rec, err := h.store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "access-1", rec.Credential)
	mu.Lock()
	assert.Equal(t, []string{"kakaoLoginSuccess"}, names, "the superseded call publishes nothing")
	mu.Unlock()

	h.adapter.mu.Lock()
	assert.Nil(t, h.adapter.pending)
	h.adapter.mu.Unlock()
}

func TestToUser_Fallbacks(t *testing.T) {
	u := ToUser(&UserInfo{ID: 7})
	assert.Equal(t, "7", u.UID)
	assert.Equal(t, FallbackDisplayName, identity.Deref(u.DisplayName))
	assert.Nil(t, u.Email)
	assert.Nil(t, u.AvatarURL)

	u = ToUser(&UserInfo{
		ID:           8,
		Properties:   &Properties{Nickname: "legacy", ProfileImage: "https://k/legacy.png"},
		KakaoAccount: &KakaoAccount{Profile: &Profile{}},
	})
	assert.Equal(t, "legacy", identity.Deref(u.DisplayName))
	assert.Equal(t, "https://k/legacy.png", identity.Deref(u.AvatarURL))
}

func TestIsAuthenticated_Liveness(t *testing.T) {
	ctx := context.Background()
	seed := func(h *harness) {
		require.NoError(t, h.store.Save(ctx, session.Record{
			Credential: "stored-token",
			User:       identity.User{UID: "1", Provider: identity.ProviderKakao},
			Provider:   identity.ProviderKakao,
		}))
	}

	t.Run("sdk not loaded, strict", func(t *testing.T) {
		h := newHarness(t)
		seed(h)
		assert.NotNil(t, h.adapter.CurrentUser(ctx))
		assert.False(t, h.adapter.IsAuthenticated(ctx))
	})

	t.Run("sdk not loaded, trusting", func(t *testing.T) {
		h := newHarness(t, func(o *Options) { o.TrustStoredSession = true })
		seed(h)
		assert.True(t, h.adapter.IsAuthenticated(ctx))
	})

	t.Run("sdk loaded, stored token rejected", func(t *testing.T) {
		h := newHarness(t)
		seed(h)
		h.sdk.restoreErr = errors.New("kakao: /v1/user/access_token_info http 401")
		require.NoError(t, h.adapter.Initialize(ctx))
		assert.Equal(t, []string{"stored-token"}, h.sdk.restored)
		assert.NotNil(t, h.adapter.CurrentUser(ctx))
		assert.False(t, h.adapter.IsAuthenticated(ctx))
	})

	t.Run("sdk loaded with token", func(t *testing.T) {
		h := newHarness(t)
		seed(h)
		h.sdk.token = "live"
		require.NoError(t, h.adapter.Initialize(ctx))
		assert.Empty(t, h.sdk.restored, "a held token is not replaced")
		assert.True(t, h.adapter.IsAuthenticated(ctx))
	})
}

func TestInitialize_RestoresStoredSessionAfterRestart(t *testing.T) {
	ctx := context.Background()
	kv := cache.NewMemory("test")

	first := newHarness(t)
	first.store = session.NewStore(kv)
	first.adapter = New(Options{
		Loader:       func() (SDK, bool) { return first.sdk, true },
		Store:        first.store,
		PollInterval: time.Millisecond,
	})
	_, err := first.adapter.SignIn(ctx)
	require.NoError(t, err)

	// proceso nuevo: SDK sin token, mismo backend
	sdk := &fakeSDK{}
	a := New(Options{
		Loader:       func() (SDK, bool) { return sdk, true },
		Store:        session.NewStore(kv),
		PollInterval: time.Millisecond,
	})
	require.NoError(t, a.Initialize(ctx))
	assert.Equal(t, []string{"access-1"}, sdk.restored)
	assert.Equal(t, "4242", a.CurrentUser(ctx).UID)
	assert.True(t, a.IsAuthenticated(ctx))

	require.NoError(t, a.SignOut(ctx))
	assert.Equal(t, 1, sdk.logouts)
	assert.Nil(t, a.CurrentUser(ctx))
}

func TestInitialize_NoRestoreForOtherProvider(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.store.Save(ctx, session.Record{
		Credential: "gis-jwt",
		User:       identity.User{UID: "g1", Provider: identity.ProviderGoogle},
		Provider:   identity.ProviderGoogle,
	}))
	require.NoError(t, h.adapter.Initialize(ctx))
	assert.Empty(t, h.sdk.restored)
	assert.False(t, h.adapter.IsAuthenticated(ctx))
}

func TestSignOut_ClearsEvenWhenLogoutFails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.adapter.SignIn(ctx)
	require.NoError(t, err)
	h.sdk.logoutErr = errors.New("network down")

	var names []string
	h.bus.Subscribe(func(ev events.Event) { names = append(names, ev.Name()) })

	require.NoError(t, h.adapter.SignOut(ctx))
	assert.Equal(t, 1, h.sdk.logouts)
	assert.Nil(t, h.adapter.CurrentUser(ctx))
	_, err = h.store.Load(ctx)
	assert.ErrorIs(t, err, session.ErrNoSession)
	assert.Equal(t, []string{"kakaoLogoutSuccess"}, names)
}

func TestSignOut_PublishesOnlyWhenSomethingEnded(t *testing.T) {
	ctx := context.Background()

	t.Run("no session", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.adapter.Initialize(ctx))
		var names []string
		h.bus.Subscribe(func(ev events.Event) { names = append(names, ev.Name()) })

		require.NoError(t, h.adapter.SignOut(ctx))
		assert.Empty(t, names)
	})

	t.Run("google session stored", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.store.Save(ctx, session.Record{
			Credential: "gis-jwt",
			User:       identity.User{UID: "g1", Provider: identity.ProviderGoogle},
			Provider:   identity.ProviderGoogle,
		}))
		var names []string
		h.bus.Subscribe(func(ev events.Event) { names = append(names, ev.Name()) })

		require.NoError(t, h.adapter.SignOut(ctx))
		assert.Empty(t, names)
		tag, err := h.store.ActiveProvider(ctx)
		require.NoError(t, err)
		assert.Equal(t, identity.ProviderGoogle, tag)
	})

	t.Run("token held without stored session", func(t *testing.T) {
		h := newHarness(t)
		h.sdk.token = "orphan"
		require.NoError(t, h.adapter.Initialize(ctx))
		var names []string
		h.bus.Subscribe(func(ev events.Event) { names = append(names, ev.Name()) })

		require.NoError(t, h.adapter.SignOut(ctx))
		assert.Equal(t, 1, h.sdk.logouts)
		assert.Equal(t, []string{"kakaoLogoutSuccess"}, names)
	})
}
