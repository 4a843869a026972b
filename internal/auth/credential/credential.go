// Package credential decodes Google Identity Services credentials.
//
// Trust boundary: Decode reads the payload segment of a JWT and nothing else.
// The signature is never checked, so a forged but well-formed token decodes
// exactly like a genuine one. Callers must not use the claims for anything
// beyond restoring the local session view of a user who signed in through
// the provider's own UI.
package credential

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// ErrDecode is returned for every malformed credential: wrong segment count,
// invalid base64url, or a payload that is not a JSON object.
var ErrDecode = errors.New("malformed token")

// Claims are the payload fields Google puts in an ID token credential.
type Claims struct {
	jwtv5.RegisteredClaims

	AuthorizedParty string `json:"azp,omitempty"`
	Email           string `json:"email,omitempty"`
	EmailVerified   bool   `json:"email_verified,omitempty"`
	Name            string `json:"name,omitempty"`
	GivenName       string `json:"given_name,omitempty"`
	FamilyName      string `json:"family_name,omitempty"`
	Picture         string `json:"picture,omitempty"`
}

// Live reports whether the credential's expiry instant is still ahead of now.
// A credential without exp is never live.
func (c *Claims) Live(now time.Time) bool {
	if c == nil || c.ExpiresAt == nil {
		return false
	}
	return c.ExpiresAt.Unix() > now.Unix()
}

var parser = jwtv5.NewParser(jwtv5.WithPaddingAllowed())

// Decode extracts the claims of a three-segment token without verifying it.
func Decode(token string) (*Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 || parts[1] == "" {
		return nil, ErrDecode
	}

	payload, err := parser.DecodeSegment(parts[1])
	if err != nil {
		return nil, ErrDecode
	}

	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 || payload[0] != '{' {
		return nil, ErrDecode
	}

	var c Claims
	if err := json.Unmarshal(payload, &c); err != nil {
		return nil, ErrDecode
	}
	return &c, nil
}
