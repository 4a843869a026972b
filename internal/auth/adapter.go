// Package auth is the multi-provider authentication core: the contract every
// provider adapter implements, the shared session binding they persist
// through, the SDK polling helper and the Orchestrator the rest of the
// application talks to.
package auth

import (
	"context"

	"github.com/dropDatabas3/chatpal/internal/domain/identity"
)

// Adapter wraps one provider SDK behind a uniform capability set.
type Adapter interface {
	// Initialize bootstraps the provider SDK. It is idempotent and safe to
	// call concurrently; failure to load in time returns ErrInitTimeout.
	Initialize(ctx context.Context) error

	// SignIn runs the provider flow and persists the resulting session.
	// Failures match ErrSignInFailed and leave persisted state untouched.
	SignIn(ctx context.Context) (*identity.User, error)

	// SignOut clears the session if this provider owns it and calls the
	// SDK logout hook. SDK errors are logged, never returned.
	SignOut(ctx context.Context) error

	// CurrentUser returns the stored user when the session is tagged with
	// this provider, nil otherwise. No network I/O.
	CurrentUser(ctx context.Context) *identity.User

	// IsAuthenticated is CurrentUser plus a provider-specific liveness check.
	IsAuthenticated(ctx context.Context) bool

	Provider() identity.Provider
}
