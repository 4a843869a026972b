package auth

import (
	"time"

	"github.com/dropDatabas3/chatpal/internal/domain/identity"
)

// Event is one Server-Sent Event payload on GET /v2/auth/events.
type Event struct {
	Name     string         `json:"name"`
	Provider string         `json:"provider"`
	User     *identity.User `json:"user,omitempty"`
	Error    string         `json:"error,omitempty"`
	At       time.Time      `json:"at"`
}
