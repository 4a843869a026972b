package router

import (
	"github.com/go-chi/chi/v5"

	ctrl "github.com/dropDatabas3/chatpal/internal/http/v2/controllers/chat"
	mw "github.com/dropDatabas3/chatpal/internal/http/v2/middlewares"
	"github.com/dropDatabas3/chatpal/internal/rate"
)

// ChatRouterDeps contiene las dependencias para el router de chat.
type ChatRouterDeps struct {
	Controllers *ctrl.Controllers
	Sessions    mw.SessionReader
	RateLimiter rate.Limiter
}

// RegisterChatRoutes registra POST /v2/chat. Requiere sesión viva; el rate
// limit corre antes para no resolver la sesión en requests rechazados.
func RegisterChatRoutes(r chi.Router, deps ChatRouterDeps) {
	r.With(
		mw.WithSecurityHeaders(""),
		mw.WithNoStore(),
		mw.WithRateLimit(mw.RateLimitConfig{Limiter: deps.RateLimiter}),
		mw.WithRequireAuth(deps.Sessions),
	).Post("/v2/chat", deps.Controllers.Chat.Send)
}
