package auth

import "github.com/dropDatabas3/chatpal/internal/domain/identity"

// Sign-in statuses.
const (
	SignInRedirect      = "redirect"
	SignInAuthenticated = "authenticated"
	SignInPending       = "pending"
)

// SignInResponse is the body of POST /v2/auth/{provider}/signin.
// Redirect carries the URL the user agent must open; the result then
// arrives on the event stream.
type SignInResponse struct {
	Status   string         `json:"status"`
	Provider string         `json:"provider"`
	URL      string         `json:"url,omitempty"`
	User     *identity.User `json:"user,omitempty"`
}
