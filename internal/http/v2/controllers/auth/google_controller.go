package auth

import (
	"bytes"
	"errors"
	"net/http"

	httperrors "github.com/dropDatabas3/chatpal/internal/http/v2/errors"
	"github.com/dropDatabas3/chatpal/internal/observability/logger"
	"github.com/dropDatabas3/chatpal/internal/sdk/gis"
)

// PromptCSP permite cargar Google Identity Services en la página de prompt.
const PromptCSP = "default-src 'self'; script-src https://accounts.google.com/gsi/client; " +
	"frame-src https://accounts.google.com/gsi/; connect-src https://accounts.google.com/gsi/; " +
	"style-src 'unsafe-inline' https://accounts.google.com/gsi/style; frame-ancestors 'none'"

// GoogleController serves the GIS prompt page and receives the credential.
type GoogleController struct {
	load     func() (GoogleBridge, bool)
	loginURI string
}

func NewGoogleController(load func() (GoogleBridge, bool), loginURI string) *GoogleController {
	if load == nil {
		load = func() (GoogleBridge, bool) { return nil, false }
	}
	return &GoogleController{load: load, loginURI: loginURI}
}

// Prompt handles GET /v2/auth/google/prompt.
func (c *GoogleController) Prompt(w http.ResponseWriter, r *http.Request) {
	log := logger.From(r.Context()).With(logger.Layer("controller"), logger.Op("GoogleController.Prompt"))

	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
		return
	}
	b, ok := c.load()
	if !ok {
		httperrors.WriteError(w, httperrors.ErrProviderUnavailable)
		return
	}
	cfg, err := b.PageConfig()
	if err != nil {
		httperrors.WriteError(w, httperrors.ErrProviderUnavailable.WithCause(err))
		return
	}

	var buf bytes.Buffer
	if err := gis.RenderPrompt(&buf, cfg, c.loginURI); err != nil {
		log.Error("render prompt failed", logger.Err(err))
		httperrors.WriteError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// Credential handles POST /v2/auth/google/credential. The bridge runs the
// adapter callback synchronously, so the session is stored by the time the
// browser is sent on to GET /v2/auth/session.
func (c *GoogleController) Credential(w http.ResponseWriter, r *http.Request) {
	log := logger.From(r.Context()).With(logger.Layer("controller"), logger.Op("GoogleController.Credential"))

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
		return
	}
	b, ok := c.load()
	if !ok {
		httperrors.WriteError(w, httperrors.ErrProviderUnavailable)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	if err := b.HandleCredential(r); err != nil {
		log.Warn("credential rejected", logger.Err(err))
		switch {
		case errors.Is(err, gis.ErrCSRF):
			httperrors.WriteError(w, httperrors.ErrForbidden.WithDetail("csrf token mismatch").WithCause(err))
		case errors.Is(err, gis.ErrMissingCredential):
			httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("credential required").WithCause(err))
		case errors.Is(err, gis.ErrNotInitialized):
			httperrors.WriteError(w, httperrors.ErrProviderUnavailable.WithCause(err))
		default:
			httperrors.WriteError(w, httperrors.ErrBadRequest.WithCause(err))
		}
		return
	}
	http.Redirect(w, r, "/v2/auth/session", http.StatusSeeOther)
}
