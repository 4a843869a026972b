package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/chatpal/internal/domain/identity"
	dto "github.com/dropDatabas3/chatpal/internal/http/v2/dto/auth"
	httperrors "github.com/dropDatabas3/chatpal/internal/http/v2/errors"
	"github.com/dropDatabas3/chatpal/internal/http/v2/helpers"
	"github.com/dropDatabas3/chatpal/internal/observability/logger"
)

// SignInController handles POST /v2/auth/{provider}/signin.
//
// The orchestrator's SignIn blocks until the user finishes with the provider,
// so it runs detached from the request, bounded by timeout. The handler
// answers with whichever comes first: the URL the SDK wants opened
// (redirect), the finished sign-in (authenticated), or pending after wait.
type SignInController struct {
	service Service
	nav     Navigations
	timeout time.Duration
	wait    time.Duration
}

func NewSignInController(service Service, nav Navigations, timeout, wait time.Duration) *SignInController {
	return &SignInController{service: service, nav: nav, timeout: timeout, wait: wait}
}

type signInResult struct {
	user *identity.User
	err  error
}

func (c *SignInController) SignIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("SignInController.SignIn"))

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
		return
	}

	p, err := identity.ParseProvider(chi.URLParam(r, "provider"))
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	log = log.With(logger.Provider(p.String()))

	watch, stop := c.watch(p)
	defer stop()

	done := make(chan signInResult, 1)
	bg, _ := logger.Scope(context.WithoutCancel(ctx), logger.Provider(p.String()))
	bg, cancel := context.WithTimeout(bg, c.timeout)
	go func() {
		defer cancel()
		u, err := c.service.SignIn(bg, p)
		if err != nil {
			log.Info("background sign-in ended", logger.Err(err))
		}
		done <- signInResult{user: u, err: err}
	}()

	timer := time.NewTimer(c.wait)
	defer timer.Stop()

	select {
	case res := <-done:
		if res.err != nil {
			httperrors.WriteError(w, res.err)
			return
		}
		helpers.WriteJSON(w, http.StatusOK, dto.SignInResponse{
			Status:   dto.SignInAuthenticated,
			Provider: p.String(),
			User:     res.user,
		})
	case url := <-watch:
		log.Debug("sign-in needs the user agent")
		helpers.WriteJSON(w, http.StatusAccepted, dto.SignInResponse{
			Status:   dto.SignInRedirect,
			Provider: p.String(),
			URL:      url,
		})
	case <-timer.C:
		helpers.WriteJSON(w, http.StatusAccepted, dto.SignInResponse{
			Status:   dto.SignInPending,
			Provider: p.String(),
		})
	case <-ctx.Done():
	}
}

// watch adapts the navigation relay to a channel of URLs.
func (c *SignInController) watch(p identity.Provider) (<-chan string, func()) {
	out := make(chan string, 1)
	if c.nav == nil {
		return out, func() {}
	}
	ch, stop := c.nav.Watch(p)
	quit := make(chan struct{})
	go func() {
		select {
		case n := <-ch:
			out <- n.URL
		case <-quit:
		}
	}()
	return out, func() {
		close(quit)
		stop()
	}
}
