package auth

import (
	"net/http"

	dto "github.com/dropDatabas3/chatpal/internal/http/v2/dto/auth"
	httperrors "github.com/dropDatabas3/chatpal/internal/http/v2/errors"
	"github.com/dropDatabas3/chatpal/internal/http/v2/helpers"
	"github.com/dropDatabas3/chatpal/internal/observability/logger"
)

// SessionController handles GET /v2/auth/session and POST /v2/auth/signout.
type SessionController struct {
	service Service
}

func NewSessionController(service Service) *SessionController {
	return &SessionController{service: service}
}

// GetSession returns the resolved user and whether its session is live. A
// stored but expired session still returns the user with authenticated=false.
func (c *SessionController) GetSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
		return
	}
	u, live := c.service.Session(r.Context())
	helpers.WriteJSON(w, http.StatusOK, dto.SessionResponse{
		Authenticated: u != nil && live,
		User:          u,
		State:         string(c.service.State()),
	})
}

// SignOut signs out every provider involved in the current session.
func (c *SessionController) SignOut(w http.ResponseWriter, r *http.Request) {
	log := logger.From(r.Context()).With(logger.Layer("controller"), logger.Op("SessionController.SignOut"))

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
		return
	}
	if err := c.service.SignOut(r.Context()); err != nil {
		log.Error("sign-out failed", logger.Err(err))
		httperrors.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.SignOutResponse{SignedOut: true})
}
