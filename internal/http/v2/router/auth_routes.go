package router

import (
	"github.com/go-chi/chi/v5"

	ctrl "github.com/dropDatabas3/chatpal/internal/http/v2/controllers/auth"
	mw "github.com/dropDatabas3/chatpal/internal/http/v2/middlewares"
	"github.com/dropDatabas3/chatpal/internal/rate"
)

// AuthRouterDeps contiene las dependencias para el router de auth.
type AuthRouterDeps struct {
	Controllers *ctrl.Controllers
	RateLimiter rate.Limiter // opcional: limita POST signin por IP
}

// RegisterAuthRoutes registra las rutas de sesión y los callbacks de SDK.
func RegisterAuthRoutes(r chi.Router, deps AuthRouterDeps) {
	c := deps.Controllers

	r.Route("/v2/auth", func(r chi.Router) {
		// La página de prompt es HTML y carga GIS: CSP propia.
		r.With(mw.WithSecurityHeaders(ctrl.PromptCSP), mw.WithNoStore()).
			Get("/google/prompt", c.Google.Prompt)

		r.Group(func(r chi.Router) {
			r.Use(mw.WithSecurityHeaders(""), mw.WithNoStore())

			r.Get("/providers", c.Providers.GetProviders)
			r.Get("/session", c.Session.GetSession)
			r.Post("/signout", c.Session.SignOut)
			r.Get("/events", c.Events.Stream)

			r.With(mw.WithRateLimit(mw.RateLimitConfig{
				Limiter: deps.RateLimiter,
				KeyFunc: mw.IPOnlyRateKey,
			})).Post("/{provider}/signin", c.SignIn.SignIn)

			r.Post("/google/credential", c.Google.Credential)
			r.Get("/kakao/callback", c.Kakao.Callback)
		})
	})
}
