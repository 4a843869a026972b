package auth

import "github.com/dropDatabas3/chatpal/internal/domain/identity"

// SessionResponse is the body of GET /v2/auth/session.
type SessionResponse struct {
	Authenticated bool           `json:"authenticated"`
	User          *identity.User `json:"user,omitempty"`
	State         string         `json:"state"`
}

// SignOutResponse is the body of POST /v2/auth/signout.
type SignOutResponse struct {
	SignedOut bool `json:"signedOut"`
}
