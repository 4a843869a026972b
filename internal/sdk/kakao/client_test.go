package kakao

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kakaoauth "github.com/dropDatabas3/chatpal/internal/auth/providers/kakao"
	"github.com/dropDatabas3/chatpal/internal/cache"
	"github.com/dropDatabas3/chatpal/internal/domain/identity"
	"github.com/dropDatabas3/chatpal/internal/sdk"
	"github.com/dropDatabas3/chatpal/internal/session"
)

type fakeKakao struct {
	srv       *httptest.Server
	gotForm   url.Values
	logouts   int
	meStatus  int
	lastToken string
	liveToken string
}

func newFakeKakao(t *testing.T) *fakeKakao {
	t.Helper()
	f := &fakeKakao{meStatus: http.StatusOK, liveToken: "kat-1"}
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		f.gotForm = r.PostForm
		if r.PostForm.Get("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"authorization code not found"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"kat-1","token_type":"bearer","refresh_token":"krt-1","expires_in":21599,"scope":"profile_nickname account_email"}`))
	})
	mux.HandleFunc("/v2/user/me", func(w http.ResponseWriter, r *http.Request) {
		f.lastToken = r.Header.Get("Authorization")
		if f.meStatus != http.StatusOK {
			w.WriteHeader(f.meStatus)
			return
		}
		_ = json.NewEncoder(w).Encode(kakaoauth.UserInfo{
			ID:           4242,
			KakaoAccount: &kakaoauth.KakaoAccount{Email: "k@x.com", Profile: &kakaoauth.Profile{Nickname: "Minji"}},
		})
	})
	mux.HandleFunc("/v1/user/access_token_info", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+f.liveToken {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"msg":"this access token does not exist","code":-401}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":4242,"expires_in":7199,"app_id":1}`))
	})
	mux.HandleFunc("/v1/user/logout", func(w http.ResponseWriter, r *http.Request) {
		f.logouts++
		_, _ = w.Write([]byte(`{"id":4242}`))
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func newTestClient(f *fakeKakao, relay *sdk.Relay) *Client {
	return NewClient(Config{
		ClientSecret: "secret",
		RedirectURL:  "http://localhost:8080/v2/auth/kakao/callback",
		AuthURL:      f.srv.URL + "/oauth/authorize",
		TokenURL:     f.srv.URL + "/oauth/token",
		APIBase:      f.srv.URL,
		HTTPClient:   f.srv.Client(),
	}, relay)
}

// completeFromNavigation plays the browser: it reads the authorize URL and
// calls back with code for its state.
func completeFromNavigation(t *testing.T, c *Client, ch <-chan sdk.Navigation, code, errCode string) {
	t.Helper()
	n := <-ch
	u, err := url.Parse(n.URL)
	require.NoError(t, err)
	require.NoError(t, c.Complete(u.Query().Get("state"), code, errCode, ""))
}

func TestClient_InitRequiresKey(t *testing.T) {
	c := NewClient(Config{}, sdk.NewRelay())
	assert.Error(t, c.Init(""))
	assert.False(t, c.IsInitialized())
	require.NoError(t, c.Init("js-key"))
	assert.True(t, c.IsInitialized())
}

func TestClient_LoginMeLogout(t *testing.T) {
	f := newFakeKakao(t)
	relay := sdk.NewRelay()
	c := newTestClient(f, relay)
	require.NoError(t, c.Init("rest-key"))
	ctx := context.Background()

	ch, cancel := relay.Watch(identity.ProviderKakao)
	defer cancel()
	go func() {
		n := <-ch
		u, _ := url.Parse(n.URL)
		q := u.Query()
		assert.Equal(t, "rest-key", q.Get("client_id"))
		assert.Equal(t, kakaoauth.DefaultScopes, q.Get("scope"))
		assert.Equal(t, "code", q.Get("response_type"))
		_ = c.Complete(q.Get("state"), "good-code", "", "")
	}()

	tok, err := c.Login(ctx, kakaoauth.DefaultScopes)
	require.NoError(t, err)
	assert.Equal(t, "kat-1", tok.AccessToken)
	assert.Equal(t, "krt-1", tok.RefreshToken)
	assert.InDelta(t, 21599, tok.ExpiresIn, 5)
	assert.Equal(t, "secret", f.gotForm.Get("client_secret"))
	assert.Equal(t, "kat-1", c.AccessToken())

	info, err := c.Me(ctx, tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, int64(4242), info.ID)
	assert.Equal(t, "Bearer kat-1", f.lastToken)

	require.NoError(t, c.Logout(ctx))
	assert.Equal(t, 1, f.logouts)
	assert.Empty(t, c.AccessToken())
	require.NoError(t, c.Logout(ctx), "logout without a token is a no-op")
	assert.Equal(t, 1, f.logouts)
}

func TestClient_LoginCallbackError(t *testing.T) {
	f := newFakeKakao(t)
	relay := sdk.NewRelay()
	c := newTestClient(f, relay)
	require.NoError(t, c.Init("rest-key"))

	ch, cancel := relay.Watch(identity.ProviderKakao)
	defer cancel()
	go completeFromNavigation(t, c, ch, "", "access_denied")

	_, err := c.Login(context.Background(), "")
	var cbErr *CallbackError
	require.ErrorAs(t, err, &cbErr)
	assert.Equal(t, "access_denied", cbErr.Code)
	assert.Empty(t, c.AccessToken())
}

func TestClient_LoginBadCode(t *testing.T) {
	f := newFakeKakao(t)
	relay := sdk.NewRelay()
	c := newTestClient(f, relay)
	require.NoError(t, c.Init("rest-key"))

	ch, cancel := relay.Watch(identity.ProviderKakao)
	defer cancel()
	go completeFromNavigation(t, c, ch, "stale-code", "")

	_, err := c.Login(context.Background(), "")
	assert.ErrorContains(t, err, "token exchange")
}

func TestClient_LoginCancelledForgetsState(t *testing.T) {
	f := newFakeKakao(t)
	relay := sdk.NewRelay()
	c := newTestClient(f, relay)
	require.NoError(t, c.Init("rest-key"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := c.Login(ctx, "")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	n, ok := relay.Last(identity.ProviderKakao)
	require.True(t, ok)
	u, _ := url.Parse(n.URL)
	assert.ErrorIs(t, c.Complete(u.Query().Get("state"), "good-code", "", ""), ErrUnknownState)
}

func TestClient_MeErrors(t *testing.T) {
	f := newFakeKakao(t)
	c := newTestClient(f, sdk.NewRelay())

	_, err := c.Me(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoToken)

	f.meStatus = http.StatusUnauthorized
	_, err = c.Me(context.Background(), "expired")
	assert.ErrorContains(t, err, "401")
}

func TestClient_WithDiscovery(t *testing.T) {
	c := NewClient(Config{}, sdk.NewRelay()).WithDiscovery(&sdk.Document{
		AuthorizationEndpoint: "https://a/authorize",
		TokenEndpoint:         "https://a/token",
	})
	assert.Equal(t, "https://a/authorize", c.cfg.AuthURL)
	assert.Equal(t, "https://a/token", c.cfg.TokenURL)
}

func TestClient_Restore(t *testing.T) {
	f := newFakeKakao(t)
	c := newTestClient(f, sdk.NewRelay())
	ctx := context.Background()

	assert.ErrorContains(t, c.Restore(ctx, "revoked"), "401")
	assert.Empty(t, c.AccessToken())

	require.NoError(t, c.Restore(ctx, "kat-1"))
	assert.Equal(t, "kat-1", c.AccessToken())

	require.NoError(t, c.Logout(ctx))
	assert.Equal(t, 1, f.logouts)
	assert.Empty(t, c.AccessToken())
}

func TestClient_StoredSessionSurvivesRestart(t *testing.T) {
	f := newFakeKakao(t)
	ctx := context.Background()
	store := session.NewStore(cache.NewMemory("chatpal"))
	require.NoError(t, store.Save(ctx, session.Record{
		Credential: "kat-1",
		User:       identity.User{UID: "42", Provider: identity.ProviderKakao},
		Provider:   identity.ProviderKakao,
	}))

	c := newTestClient(f, sdk.NewRelay())
	a := kakaoauth.New(kakaoauth.Options{
		AppKey:       "rest-key",
		Loader:       func() (kakaoauth.SDK, bool) { return c, true },
		Store:        store,
		PollInterval: time.Millisecond,
	})
	require.NoError(t, a.Initialize(ctx))
	assert.Equal(t, "42", a.CurrentUser(ctx).UID)
	assert.True(t, a.IsAuthenticated(ctx))

	require.NoError(t, a.SignOut(ctx))
	assert.Equal(t, 1, f.logouts, "remote logout uses the restored token")
	assert.False(t, a.IsAuthenticated(ctx))
}
