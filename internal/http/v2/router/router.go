// Package router arma el árbol de rutas V2 sobre chi.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/chatpal/internal/http/v2/controllers"
	httperrors "github.com/dropDatabas3/chatpal/internal/http/v2/errors"
	mw "github.com/dropDatabas3/chatpal/internal/http/v2/middlewares"
	"github.com/dropDatabas3/chatpal/internal/rate"
)

// Deps contiene las dependencias del router.
type Deps struct {
	Controllers *controllers.Controllers

	// Sessions protege las rutas que requieren sesión (auth.Orchestrator).
	Sessions mw.SessionReader

	// Limiters opcionales; nil desactiva el rate limit del grupo.
	SignInLimiter rate.Limiter
	ChatLimiter   rate.Limiter

	CORSOrigins []string

	// Metrics se monta en /metrics si no es nil.
	Metrics http.Handler
}

// New construye el handler raíz. Cada Register* agrega su grupo.
func New(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		mw.WithRecover(),
		mw.WithRequestID(),
		mw.WithCORS(deps.CORSOrigins),
		mw.WithLogging(),
	)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httperrors.WriteError(w, httperrors.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})

	c := deps.Controllers
	RegisterHealthRoutes(r, HealthRouterDeps{Controllers: c.Health, Metrics: deps.Metrics})
	RegisterAuthRoutes(r, AuthRouterDeps{Controllers: c.Auth, RateLimiter: deps.SignInLimiter})
	RegisterChatRoutes(r, ChatRouterDeps{Controllers: c.Chat, Sessions: deps.Sessions, RateLimiter: deps.ChatLimiter})
	return r
}
