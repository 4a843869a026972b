// Package identity holds the provider-neutral user model shared by the
// session store, the provider adapters and the HTTP layer.
package identity

import (
	"errors"
	"fmt"
)

// ErrUnknownProvider is returned by ParseProvider for unsupported tags.
var ErrUnknownProvider = errors.New("identity: unknown provider")

// Provider tags the identity provider that produced a user or a session.
type Provider string

const (
	// ProviderGoogle issues a signed JWT credential (Google Identity Services).
	ProviderGoogle Provider = "google"
	// ProviderKakao issues an OAuth access token (Kakao Login).
	ProviderKakao Provider = "kakao"
)

// Providers lists the supported providers in their canonical probing order.
func Providers() []Provider {
	return []Provider{ProviderGoogle, ProviderKakao}
}

// Valid reports whether p is one of the supported providers.
func (p Provider) Valid() bool {
	switch p {
	case ProviderGoogle, ProviderKakao:
		return true
	}
	return false
}

func (p Provider) String() string { return string(p) }

// ParseProvider converts a tag read from storage or a URL into a Provider.
func ParseProvider(s string) (Provider, error) {
	p := Provider(s)
	if !p.Valid() {
		return "", fmt.Errorf("%w %q", ErrUnknownProvider, s)
	}
	return p, nil
}

// User is the canonical record an adapter builds after a successful sign-in.
// UID is scoped to Provider: the same UID under two providers is two users.
type User struct {
	UID         string   `json:"uid"`
	DisplayName *string  `json:"displayName"`
	Email       *string  `json:"email"`
	AvatarURL   *string  `json:"photoURL"`
	Provider    Provider `json:"provider"`
}

// Equal compares every field, dereferencing optional values.
func (u User) Equal(o User) bool {
	return u.UID == o.UID &&
		u.Provider == o.Provider &&
		eqOpt(u.DisplayName, o.DisplayName) &&
		eqOpt(u.Email, o.Email) &&
		eqOpt(u.AvatarURL, o.AvatarURL)
}

// Opt returns a pointer to s, or nil when s is empty.
func Opt(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func eqOpt(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
