package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/dropDatabas3/chatpal/internal/domain/identity"
	"github.com/dropDatabas3/chatpal/internal/observability/logger"
	"github.com/dropDatabas3/chatpal/internal/session"
)

// Binding is one provider's view over the shared session store. Adapters
// read and write the session only through it.
type Binding struct {
	provider identity.Provider
	store    *session.Store
}

// NewBinding scopes store to provider p.
func NewBinding(p identity.Provider, store *session.Store) *Binding {
	return &Binding{provider: p, store: store}
}

func (b *Binding) Provider() identity.Provider { return b.provider }

// Session returns the stored record when it is tagged with this provider.
// Corrupt state is cleared by the store and reported as absent.
func (b *Binding) Session(ctx context.Context) *session.Record {
	rec, err := b.store.Load(ctx)
	switch {
	case err == nil:
	case errors.Is(err, session.ErrNoSession), errors.Is(err, session.ErrCorrupt):
		return nil
	default:
		logger.From(ctx).Warn("session read failed",
			logger.Component("auth.binding"),
			logger.Provider(b.provider.String()),
			logger.Err(err),
		)
		return nil
	}
	if rec.Provider != b.provider {
		return nil
	}
	return rec
}

// CurrentUser returns a copy of the stored user for this provider, or nil.
func (b *Binding) CurrentUser(ctx context.Context) *identity.User {
	rec := b.Session(ctx)
	if rec == nil {
		return nil
	}
	u := rec.User
	return &u
}

// Persist writes the session for user. The user must have been built for this
// provider.
func (b *Binding) Persist(ctx context.Context, user identity.User, credential string) error {
	if user.Provider != b.provider {
		return fmt.Errorf("auth: %s cannot persist a %s user", b.provider, user.Provider)
	}
	return b.store.Save(ctx, session.Record{
		Credential: credential,
		User:       user,
		Provider:   b.provider,
	})
}

// Clear removes the session only if it is tagged with this provider.
// It reports whether anything was cleared.
func (b *Binding) Clear(ctx context.Context) (bool, error) {
	tag, err := b.store.ActiveProvider(ctx)
	if err != nil {
		return false, err
	}
	if tag != b.provider {
		return false, nil
	}
	if err := b.store.Clear(ctx); err != nil {
		return false, err
	}
	return true, nil
}
