// Package session persists the signed-in user across restarts.
//
// A session is three co-located entries: the raw credential, the serialized
// user and the active provider tag. They are read with one GetMany, written
// with one SetMany and cleared with one DeleteMany; any read that finds only
// some of them treats the state as corrupt and clears all three.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dropDatabas3/chatpal/internal/cache"
	"github.com/dropDatabas3/chatpal/internal/domain/identity"
	"github.com/dropDatabas3/chatpal/internal/observability/logger"
)

// Entry names inside the backend (the backend applies its own prefix).
const (
	KeyCredential     = "credential"
	KeyUser           = "user"
	KeyActiveProvider = "activeProvider"
)

var (
	// ErrNoSession means none of the three entries exist.
	ErrNoSession = errors.New("session: no session")
	// ErrCorrupt means a partial or inconsistent session was found and cleared.
	ErrCorrupt = errors.New("session: corrupt session")
)

// Record is the persisted session.
type Record struct {
	Credential string
	User       identity.User
	Provider   identity.Provider
}

// Store is the persistent session store.
type Store struct {
	kv cache.Client
}

// NewStore wraps a key-value backend.
func NewStore(kv cache.Client) *Store {
	return &Store{kv: kv}
}

// Save writes the three entries as one unit.
func (s *Store) Save(ctx context.Context, r Record) error {
	if r.Credential == "" {
		return errors.New("session: empty credential")
	}
	if !r.Provider.Valid() {
		return fmt.Errorf("session: invalid provider %q", r.Provider)
	}
	if r.User.Provider != r.Provider {
		return fmt.Errorf("session: user provider %q does not match tag %q", r.User.Provider, r.Provider)
	}
	u, err := json.Marshal(r.User)
	if err != nil {
		return fmt.Errorf("session: encode user: %w", err)
	}
	return s.kv.SetMany(ctx, map[string]string{
		KeyCredential:     r.Credential,
		KeyUser:           string(u),
		KeyActiveProvider: string(r.Provider),
	})
}

// Load reads the session. It returns ErrNoSession when nothing is stored and
// ErrCorrupt (after clearing) when the entries are inconsistent.
func (s *Store) Load(ctx context.Context) (*Record, error) {
	// Una sola lectura: un Save concurrente se ve entero o no se ve.
	vals, err := s.kv.GetMany(ctx, KeyCredential, KeyUser, KeyActiveProvider)
	if err != nil {
		return nil, fmt.Errorf("session: read: %w", err)
	}
	cred, credOK := vals[KeyCredential]
	rawUser, userOK := vals[KeyUser]
	tag, tagOK := vals[KeyActiveProvider]

	if !credOK && !userOK && !tagOK {
		return nil, ErrNoSession
	}
	if !credOK || !userOK || !tagOK || cred == "" {
		return nil, s.corrupt(ctx, "partial session")
	}

	var u identity.User
	if err := json.Unmarshal([]byte(rawUser), &u); err != nil {
		return nil, s.corrupt(ctx, "undecodable user")
	}
	if string(u.Provider) != tag {
		return nil, s.corrupt(ctx, "user provider does not match tag")
	}
	return &Record{Credential: cred, User: u, Provider: identity.Provider(tag)}, nil
}

// ActiveProvider returns the stored provider tag, or "" when absent.
// The tag is returned even if it names a provider this build does not know.
func (s *Store) ActiveProvider(ctx context.Context) (identity.Provider, error) {
	tag, ok, err := s.get(ctx, KeyActiveProvider)
	if err != nil || !ok {
		return "", err
	}
	return identity.Provider(tag), nil
}

// Clear removes the three entries as one unit.
func (s *Store) Clear(ctx context.Context) error {
	return s.kv.DeleteMany(ctx, KeyCredential, KeyUser, KeyActiveProvider)
}

func (s *Store) get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.kv.Get(ctx, key)
	if cache.IsNotFound(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("session: read %s: %w", key, err)
	}
	return v, true, nil
}

func (s *Store) corrupt(ctx context.Context, reason string) error {
	log := logger.From(ctx).With(logger.Component("session"), logger.Op("Load"))
	log.Warn("clearing corrupt session", logger.String("reason", reason))
	if err := s.Clear(ctx); err != nil {
		log.Error("failed to clear corrupt session", logger.Err(err))
		return errors.Join(ErrCorrupt, err)
	}
	return ErrCorrupt
}
