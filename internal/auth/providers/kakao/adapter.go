// Package kakao adapts Kakao Login to the auth.Adapter contract. Sign-in is
// two round trips: authorization yields an access token, then the profile is
// fetched with it. The access token is what gets persisted.
package kakao

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/chatpal/internal/auth"
	"github.com/dropDatabas3/chatpal/internal/domain/identity"
	"github.com/dropDatabas3/chatpal/internal/events"
	"github.com/dropDatabas3/chatpal/internal/observability/logger"
	"github.com/dropDatabas3/chatpal/internal/session"
)

// FallbackDisplayName is used when the profile carries no nickname.
const FallbackDisplayName = "Kakao User"

// Options configures the adapter.
type Options struct {
	AppKey string
	Scopes string
	Loader func() (SDK, bool)
	Store  *session.Store
	Bus    events.Publisher

	// TrustStoredSession makes IsAuthenticated accept a stored session while
	// the SDK is not loaded. Off by default: no SDK, no liveness, not
	// authenticated.
	TrustStoredSession bool

	PollInterval time.Duration
	InitTimeout  time.Duration
}

// Adapter is the Kakao provider adapter.
type Adapter struct {
	opts    Options
	binding *auth.Binding
	group   singleflight.Group

	mu      sync.Mutex
	sdk     SDK
	gen     uint64
	pending context.CancelCauseFunc
}

var _ auth.Adapter = (*Adapter)(nil)

func New(opts Options) *Adapter {
	if opts.Scopes == "" {
		opts.Scopes = DefaultScopes
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = auth.DefaultPollInterval
	}
	if opts.InitTimeout <= 0 {
		opts.InitTimeout = auth.DefaultInitTimeout
	}
	if opts.Loader == nil {
		opts.Loader = func() (SDK, bool) { return nil, false }
	}
	return &Adapter{
		opts:    opts,
		binding: auth.NewBinding(identity.ProviderKakao, opts.Store),
	}
}

func (a *Adapter) Provider() identity.Provider { return identity.ProviderKakao }

// Initialize waits for the SDK and calls Init unless the SDK already is.
func (a *Adapter) Initialize(ctx context.Context) error {
	if a.loaded() != nil {
		return nil
	}
	_, err, _ := a.group.Do("init", func() (any, error) {
		if a.loaded() != nil {
			return nil, nil
		}
		sdk, err := auth.WaitForSDK(ctx, a.opts.Loader, a.opts.PollInterval, a.opts.InitTimeout)
		if err != nil {
			return nil, err
		}
		if !sdk.IsInitialized() {
			if err := sdk.Init(a.opts.AppKey); err != nil {
				return nil, errors.Join(errors.New("kakao: init failed"), err)
			}
		}
		a.restore(ctx, sdk)
		a.mu.Lock()
		a.sdk = sdk
		a.mu.Unlock()
		return nil, nil
	})
	return err
}

// restore seeds an SDK holding no token with the stored Kakao credential, so
// a restarted process keeps its session without a new login.
func (a *Adapter) restore(ctx context.Context, sdk SDK) {
	if sdk.AccessToken() != "" {
		return
	}
	rec := a.binding.Session(ctx)
	if rec == nil || rec.Credential == "" {
		return
	}
	log := logger.From(ctx).With(logger.Component("auth.kakao"), logger.Op("Initialize"))
	if err := sdk.Restore(ctx, rec.Credential); err != nil {
		log.Info("stored access token not restored", logger.Err(err))
		return
	}
	log.Debug("stored access token restored", logger.String("uid", rec.User.UID))
}

// SignIn authorizes, fetches the profile and persists the session. Nothing is
// persisted unless both stages succeed. A new call cancels a pending one,
// which then fails with auth.ErrSuperseded.
func (a *Adapter) SignIn(ctx context.Context) (*identity.User, error) {
	if err := a.Initialize(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancelCause(ctx)
	a.mu.Lock()
	if a.pending != nil {
		a.pending(auth.ErrSuperseded)
	}
	a.gen++
	gen := a.gen
	a.pending = cancel
	sdk := a.sdk
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		if a.gen == gen {
			a.pending = nil
		}
		a.mu.Unlock()
		cancel(nil)
	}()

	log := logger.From(ctx).With(logger.Component("auth.kakao"), logger.Op("SignIn"))

	tok, err := sdk.Login(ctx, a.opts.Scopes)
	if superseded(ctx) {
		log.Debug("sign-in superseded during authorization")
		return nil, auth.SignInFailed(a.Provider(), auth.ErrSuperseded)
	}
	if err == nil && (tok == nil || tok.AccessToken == "") {
		err = errors.New("authorization returned no access token")
	}
	if err != nil {
		log.Info("authorization failed", logger.Err(err))
		return nil, a.fail(err)
	}

	info, err := sdk.Me(ctx, tok.AccessToken)
	if superseded(ctx) {
		log.Debug("sign-in superseded during profile fetch")
		return nil, auth.SignInFailed(a.Provider(), auth.ErrSuperseded)
	}
	if err == nil && info == nil {
		err = errors.New("empty profile response")
	}
	if err != nil {
		log.Info("profile fetch failed", logger.Err(err))
		return nil, a.fail(err)
	}

	user := ToUser(info)
	if err := a.binding.Persist(ctx, user, tok.AccessToken); err != nil {
		return nil, a.fail(err)
	}
	a.publish(events.Event{Type: events.LoginSuccess, Provider: a.Provider(), User: &user})
	return &user, nil
}

// SignOut clears a Kakao-tagged session and logs out of the SDK. A failed
// remote logout is logged; the local session is cleared regardless.
// LogoutSuccess is published only when there was a session to end, stored or
// held by the SDK.
func (a *Adapter) SignOut(ctx context.Context) error {
	held := false
	if sdk := a.loaded(); sdk != nil {
		held = sdk.AccessToken() != ""
		if err := sdk.Logout(ctx); err != nil {
			logger.From(ctx).Warn("kakao logout failed",
				logger.Component("auth.kakao"), logger.Op("SignOut"), logger.Err(err))
		}
	}
	cleared, err := a.binding.Clear(ctx)
	if cleared || held {
		a.publish(events.Event{Type: events.LogoutSuccess, Provider: a.Provider()})
	}
	return err
}

func (a *Adapter) CurrentUser(ctx context.Context) *identity.User {
	return a.binding.CurrentUser(ctx)
}

// IsAuthenticated asks the SDK for a live access token. Without a loaded SDK
// the answer depends on TrustStoredSession.
func (a *Adapter) IsAuthenticated(ctx context.Context) bool {
	rec := a.binding.Session(ctx)
	if rec == nil || rec.Credential == "" {
		return false
	}
	sdk := a.loaded()
	if sdk == nil {
		return a.opts.TrustStoredSession
	}
	return sdk.AccessToken() != ""
}

// ToUser maps a profile response onto the canonical user.
func ToUser(info *UserInfo) identity.User {
	var nick, email, avatar string
	if acc := info.KakaoAccount; acc != nil {
		email = acc.Email
		if acc.Profile != nil {
			nick = acc.Profile.Nickname
			avatar = acc.Profile.ProfileImageURL
		}
	}
	if p := info.Properties; p != nil {
		if nick == "" {
			nick = p.Nickname
		}
		if avatar == "" {
			avatar = p.ProfileImage
		}
	}
	if nick == "" {
		nick = FallbackDisplayName
	}
	return identity.User{
		UID:         strconv.FormatInt(info.ID, 10),
		DisplayName: &nick,
		Email:       identity.Opt(email),
		AvatarURL:   identity.Opt(avatar),
		Provider:    identity.ProviderKakao,
	}
}

func (a *Adapter) fail(cause error) error {
	err := auth.SignInFailed(a.Provider(), cause)
	a.publish(events.Event{Type: events.LoginError, Provider: a.Provider(), Err: err})
	return err
}

func superseded(ctx context.Context) bool {
	return errors.Is(context.Cause(ctx), auth.ErrSuperseded)
}

func (a *Adapter) loaded() SDK {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sdk
}

func (a *Adapter) publish(ev events.Event) {
	if a.opts.Bus != nil {
		a.opts.Bus.Publish(ev)
	}
}
