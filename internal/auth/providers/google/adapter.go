// Package google adapts Google Identity Services to the auth.Adapter
// contract. The credential is a signed ID token; the session is live while
// the token's exp claim is in the future.
package google

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/chatpal/internal/auth"
	"github.com/dropDatabas3/chatpal/internal/auth/credential"
	"github.com/dropDatabas3/chatpal/internal/domain/identity"
	"github.com/dropDatabas3/chatpal/internal/events"
	"github.com/dropDatabas3/chatpal/internal/observability/logger"
	"github.com/dropDatabas3/chatpal/internal/session"
)

// Options configures the adapter.
type Options struct {
	ClientID string
	// Loader reports the SDK once it is available.
	Loader func() (IdentityServices, bool)
	Store  *session.Store
	Bus    events.Publisher

	AutoSelect   bool
	PollInterval time.Duration
	InitTimeout  time.Duration
	Now          func() time.Time
}

type result struct {
	user *identity.User
	err  error
}

// Adapter is the Google provider adapter.
type Adapter struct {
	opts    Options
	binding *auth.Binding
	group   singleflight.Group

	mu     sync.Mutex
	sdk    IdentityServices
	ticket chan result
}

var _ auth.Adapter = (*Adapter)(nil)

// New builds an adapter. The SDK is not touched until Initialize.
func New(opts Options) *Adapter {
	if opts.PollInterval <= 0 {
		opts.PollInterval = auth.DefaultPollInterval
	}
	if opts.InitTimeout <= 0 {
		opts.InitTimeout = auth.DefaultInitTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Loader == nil {
		opts.Loader = func() (IdentityServices, bool) { return nil, false }
	}
	return &Adapter{
		opts:    opts,
		binding: auth.NewBinding(identity.ProviderGoogle, opts.Store),
	}
}

func (a *Adapter) Provider() identity.Provider { return identity.ProviderGoogle }

// Initialize waits for the SDK and registers the credential callback once.
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
		sdk.Initialize(IDConfig{
			ClientID:           a.opts.ClientID,
			Callback:           a.handleCredential,
			AutoSelect:         a.opts.AutoSelect,
			CancelOnTapOutside: true,
		})
		a.mu.Lock()
		a.sdk = sdk
		a.mu.Unlock()
		return nil, nil
	})
	return err
}

// SignIn prompts the user and waits for the credential callback. A new call
// replaces a pending one: the older caller fails with auth.ErrSuperseded and
// the credential resolves the newest ticket.
func (a *Adapter) SignIn(ctx context.Context) (*identity.User, error) {
	if err := a.Initialize(ctx); err != nil {
		return nil, err
	}

	a.mu.Lock()
	prev := a.ticket
	t := make(chan result, 1)
	a.ticket = t
	sdk := a.sdk
	a.mu.Unlock()

	// prev ya no es alcanzable desde handleCredential; el buffer garantiza
	// que el envío no bloquea.
	if prev != nil {
		prev <- result{err: auth.SignInFailed(a.Provider(), auth.ErrSuperseded)}
	}

	if err := sdk.Prompt(ctx); err != nil {
		a.dropTicket(t)
		return nil, auth.SignInFailed(a.Provider(), err)
	}

	select {
	case r := <-t:
		if r.err != nil {
			return nil, r.err
		}
		return r.user, nil
	case <-ctx.Done():
		a.dropTicket(t)
		return nil, auth.SignInFailed(a.Provider(), ctx.Err())
	}
}

// SignOut clears a Google-tagged session and turns auto-select off so the
// next page load does not sign the user straight back in. LogoutSuccess is
// published only when a Google session was actually removed.
func (a *Adapter) SignOut(ctx context.Context) error {
	cleared, err := a.binding.Clear(ctx)
	if sdk := a.loaded(); sdk != nil {
		sdk.DisableAutoSelect()
	}
	if cleared {
		a.publish(events.Event{Type: events.LogoutSuccess, Provider: a.Provider()})
	}
	return err
}

func (a *Adapter) CurrentUser(ctx context.Context) *identity.User {
	return a.binding.CurrentUser(ctx)
}

// IsAuthenticated checks the stored token's expiry locally.
func (a *Adapter) IsAuthenticated(ctx context.Context) bool {
	rec := a.binding.Session(ctx)
	if rec == nil {
		return false
	}
	claims, err := credential.Decode(rec.Credential)
	if err != nil {
		return false
	}
	return claims.Live(a.opts.Now())
}

// handleCredential is registered with the SDK. It resolves the pending
// ticket, or broadcasts when nothing is pending (silent auto-select).
func (a *Adapter) handleCredential(resp CredentialResponse) {
	ctx := context.Background()
	user, err := a.complete(ctx, resp.Credential)

	a.mu.Lock()
	t := a.ticket
	a.ticket = nil
	a.mu.Unlock()

	if t != nil {
		t <- result{user: user, err: err}
		return
	}
	if err != nil {
		logger.L().Warn("credential callback failed",
			logger.Component("auth.google"), logger.Err(err))
		a.publish(events.Event{Type: events.LoginError, Provider: a.Provider(), Err: err})
		return
	}
	a.publish(events.Event{Type: events.LoginSuccess, Provider: a.Provider(), User: user})
}

func (a *Adapter) complete(ctx context.Context, token string) (*identity.User, error) {
	claims, err := credential.Decode(token)
	if err != nil {
		return nil, auth.SignInFailed(a.Provider(), err)
	}
	if claims.Subject == "" {
		return nil, auth.SignInFailed(a.Provider(), errors.New("credential has no subject"))
	}
	user := identity.User{
		UID:         claims.Subject,
		DisplayName: identity.Opt(claims.Name),
		Email:       identity.Opt(claims.Email),
		AvatarURL:   identity.Opt(claims.Picture),
		Provider:    identity.ProviderGoogle,
	}
	if err := a.binding.Persist(ctx, user, token); err != nil {
		return nil, auth.SignInFailed(a.Provider(), err)
	}
	return &user, nil
}

func (a *Adapter) dropTicket(t chan result) {
	a.mu.Lock()
	if a.ticket == t {
		a.ticket = nil
	}
	a.mu.Unlock()
}

func (a *Adapter) loaded() IdentityServices {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sdk
}

func (a *Adapter) publish(ev events.Event) {
	if a.opts.Bus != nil {
		a.opts.Bus.Publish(ev)
	}
}
