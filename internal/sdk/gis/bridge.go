// Package gis is the server side of Google Identity Services. The browser
// loads the GIS client script from the prompt page; GIS posts the credential
// back to the login URI, where HandleCredential hands it to the callback the
// google adapter registered.
package gis

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/dropDatabas3/chatpal/internal/auth/providers/google"
	"github.com/dropDatabas3/chatpal/internal/domain/identity"
	"github.com/dropDatabas3/chatpal/internal/sdk"
)

// CSRFCookie is the double-submit cookie GIS sets alongside the POST.
const CSRFCookie = "g_csrf_token"

var (
	ErrNotInitialized    = errors.New("gis: not initialized")
	ErrCSRF              = errors.New("gis: csrf token mismatch")
	ErrMissingCredential = errors.New("gis: missing credential")
)

// Bridge implements google.IdentityServices.
type Bridge struct {
	nav       sdk.Navigator
	promptURL string

	mu          sync.RWMutex
	cfg         google.IDConfig
	initialized bool
	noAuto      bool
}

var _ google.IdentityServices = (*Bridge)(nil)

// NewBridge returns a bridge that sends the user to promptURL on Prompt.
func NewBridge(nav sdk.Navigator, promptURL string) *Bridge {
	return &Bridge{nav: nav, promptURL: promptURL}
}

func (b *Bridge) Initialize(cfg google.IDConfig) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cfg = cfg
	b.initialized = true
}

// Prompt asks the user agent to open the prompt page.
func (b *Bridge) Prompt(ctx context.Context) error {
	if !b.Initialized() {
		return ErrNotInitialized
	}
	return b.nav.Navigate(ctx, sdk.Navigation{Provider: identity.ProviderGoogle, URL: b.promptURL})
}

// DisableAutoSelect renders prompt pages with auto-select off until the next
// credential arrives.
func (b *Bridge) DisableAutoSelect() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.noAuto = true
}

func (b *Bridge) Initialized() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.initialized
}

// PageConfig is what the prompt page needs to boot the GIS client.
type PageConfig struct {
	ClientID           string
	AutoSelect         bool
	CancelOnTapOutside bool
}

func (b *Bridge) PageConfig() (PageConfig, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.initialized {
		return PageConfig{}, ErrNotInitialized
	}
	return PageConfig{
		ClientID:           b.cfg.ClientID,
		AutoSelect:         b.cfg.AutoSelect && !b.noAuto,
		CancelOnTapOutside: b.cfg.CancelOnTapOutside,
	}, nil
}

// HandleCredential validates the GIS POST and invokes the registered
// callback synchronously.
func (b *Bridge) HandleCredential(r *http.Request) error {
	b.mu.RLock()
	cb, ok := b.cfg.Callback, b.initialized
	b.mu.RUnlock()
	if !ok || cb == nil {
		return ErrNotInitialized
	}

	if err := r.ParseForm(); err != nil {
		return err
	}
	c, err := r.Cookie(CSRFCookie)
	if err != nil || c.Value == "" || c.Value != r.PostFormValue(CSRFCookie) {
		return ErrCSRF
	}
	cred := r.PostFormValue("credential")
	if cred == "" {
		return ErrMissingCredential
	}
	b.mu.Lock()
	b.noAuto = false
	b.mu.Unlock()
	cb(google.CredentialResponse{Credential: cred, SelectBy: r.PostFormValue("select_by")})
	return nil
}
