// Package kakao implements the Kakao SDK surface the kakao adapter needs on
// top of golang.org/x/oauth2 and the Kakao REST API. Login hands the
// authorize URL to a navigator and waits for the redirect callback to arrive
// through Complete.
package kakao

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	kakaoauth "github.com/dropDatabas3/chatpal/internal/auth/providers/kakao"
	"github.com/dropDatabas3/chatpal/internal/domain/identity"
	"github.com/dropDatabas3/chatpal/internal/sdk"
)

const (
	DefaultAuthURL  = "https://kauth.kakao.com/oauth/authorize"
	DefaultTokenURL = "https://kauth.kakao.com/oauth/token"
	DefaultAPIBase  = "https://kapi.kakao.com"
)

var (
	ErrUnknownState = errors.New("kakao: unknown or expired state")
	ErrNoToken      = errors.New("kakao: no access token")
)

// Config for the client. ClientID is the REST API key; when empty the key
// given to Init is used.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
	APIBase      string
	HTTPClient   *http.Client
}

// CallbackError is the error Kakao reports on the redirect.
type CallbackError struct {
	Code        string
	Description string
}

func (e *CallbackError) Error() string {
	if e.Description == "" {
		return "kakao: " + e.Code
	}
	return fmt.Sprintf("kakao: %s: %s", e.Code, e.Description)
}

type callback struct {
	code string
	err  error
}

// Client implements kakaoauth.SDK.
type Client struct {
	cfg  Config
	nav  sdk.Navigator
	http *http.Client

	mu          sync.Mutex
	oauth       *oauth2.Config
	initialized bool
	token       *oauth2.Token
	pending     map[string]chan callback
}

var _ kakaoauth.SDK = (*Client)(nil)

func NewClient(cfg Config, nav sdk.Navigator) *Client {
	if cfg.AuthURL == "" {
		cfg.AuthURL = DefaultAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultAPIBase
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{cfg: cfg, nav: nav, http: hc, pending: map[string]chan callback{}}
}

// WithDiscovery points the OAuth endpoints at a discovered configuration.
func (c *Client) WithDiscovery(doc *sdk.Document) *Client {
	c.cfg.AuthURL = doc.AuthorizationEndpoint
	c.cfg.TokenURL = doc.TokenEndpoint
	return c
}

func (c *Client) IsInitialized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initialized
}

func (c *Client) Init(appKey string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	clientID := c.cfg.ClientID
	if clientID == "" {
		clientID = appKey
	}
	if clientID == "" {
		return errors.New("kakao: missing app key")
	}
	c.oauth = &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: c.cfg.ClientSecret,
		RedirectURL:  c.cfg.RedirectURL,
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.cfg.AuthURL,
			TokenURL:  c.cfg.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	c.initialized = true
	return nil
}

// Login sends the user to the authorize URL and blocks until Complete is
// called with the matching state, then exchanges the code.
func (c *Client) Login(ctx context.Context, scopes string) (*kakaoauth.AuthResponse, error) {
	c.mu.Lock()
	conf := c.oauth
	if conf == nil {
		c.mu.Unlock()
		return nil, errors.New("kakao: not initialized")
	}
	state := uuid.NewString()
	ch := make(chan callback, 1)
	c.pending[state] = ch
	c.mu.Unlock()
	defer c.forget(state)

	opts := []oauth2.AuthCodeOption{}
	if scopes != "" {
		opts = append(opts, oauth2.SetAuthURLParam("scope", scopes))
	}
	url := conf.AuthCodeURL(state, opts...)
	if err := c.nav.Navigate(ctx, sdk.Navigation{Provider: identity.ProviderKakao, URL: url}); err != nil {
		return nil, err
	}

	var cb callback
	select {
	case cb = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if cb.err != nil {
		return nil, cb.err
	}

	tok, err := conf.Exchange(c.oauthContext(ctx), cb.code)
	if err != nil {
		return nil, fmt.Errorf("kakao: token exchange: %w", err)
	}
	c.mu.Lock()
	c.token = tok
	c.mu.Unlock()

	out := &kakaoauth.AuthResponse{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
	}
	if !tok.Expiry.IsZero() {
		out.ExpiresIn = int(time.Until(tok.Expiry).Seconds())
	}
	if s, ok := tok.Extra("scope").(string); ok {
		out.Scope = s
	}
	return out, nil
}

// Complete delivers the redirect callback to the Login waiting on state.
func (c *Client) Complete(state, code, errCode, errDesc string) error {
	c.mu.Lock()
	ch, ok := c.pending[state]
	if ok {
		delete(c.pending, state)
	}
	c.mu.Unlock()
	if !ok {
		return ErrUnknownState
	}

	switch {
	case errCode != "":
		ch <- callback{err: &CallbackError{Code: errCode, Description: errDesc}}
	case code == "":
		ch <- callback{err: errors.New("kakao: callback without code")}
	default:
		ch <- callback{code: code}
	}
	return nil
}

// Me fetches /v2/user/me with accessToken.
func (c *Client) Me(ctx context.Context, accessToken string) (*kakaoauth.UserInfo, error) {
	var info kakaoauth.UserInfo
	if err := c.api(ctx, http.MethodGet, "/v2/user/me", accessToken, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// AccessToken returns the held token while it is valid.
func (c *Client) AccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == nil || !c.token.Valid() {
		return ""
	}
	return c.token.AccessToken
}

// Restore validates accessToken against /v1/user/access_token_info and holds
// it when Kakao accepts it. A token already held wins.
func (c *Client) Restore(ctx context.Context, accessToken string) error {
	var info struct {
		ID        int64 `json:"id"`
		ExpiresIn int64 `json:"expires_in"`
	}
	if err := c.api(ctx, http.MethodGet, "/v1/user/access_token_info", accessToken, &info); err != nil {
		return err
	}
	tok := &oauth2.Token{AccessToken: accessToken, TokenType: "bearer"}
	if info.ExpiresIn > 0 {
		tok.Expiry = time.Now().Add(time.Duration(info.ExpiresIn) * time.Second)
	}
	c.mu.Lock()
	if c.token == nil || !c.token.Valid() {
		c.token = tok
	}
	c.mu.Unlock()
	return nil
}

// Logout expires the held token at Kakao. The local token is dropped even
// when the call fails.
func (c *Client) Logout(ctx context.Context) error {
	c.mu.Lock()
	tok := c.token
	c.token = nil
	c.mu.Unlock()
	if tok == nil {
		return nil
	}
	return c.api(ctx, http.MethodPost, "/v1/user/logout", tok.AccessToken, nil)
}

func (c *Client) api(ctx context.Context, method, path, accessToken string, out any) error {
	if accessToken == "" {
		return ErrNoToken
	}
	hc := oauth2.NewClient(c.oauthContext(ctx), oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.APIBase+path, nil)
	if err != nil {
		return err
	}
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("kakao: %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("kakao: %s http %d: %s", path, resp.StatusCode, body)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("kakao: %s decode: %w", path, err)
	}
	return nil
}

func (c *Client) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.http)
}

func (c *Client) forget(state string) {
	c.mu.Lock()
	delete(c.pending, state)
	c.mu.Unlock()
}
