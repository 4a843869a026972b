// Package controllers agrupa todos los controllers HTTP V2.
// Es el "composition root" de controllers:
//
//	┌───────────────────────────────────────────────────────────────────────────┐
//	│  1. deps := controllers.Deps{...}    ← orquestador, bus, SDKs, chat       │
//	│           ▼                                                               │
//	│  2. ctrls := controllers.New(deps)   ← un aggregator por dominio          │
//	│           ▼                                                               │
//	│  3. router.New(router.Deps{...})     ← rutas + middlewares por grupo      │
//	└───────────────────────────────────────────────────────────────────────────┘
package controllers

import (
	"github.com/dropDatabas3/chatpal/internal/http/v2/controllers/auth"
	"github.com/dropDatabas3/chatpal/internal/http/v2/controllers/chat"
	"github.com/dropDatabas3/chatpal/internal/http/v2/controllers/health"
	healthsvc "github.com/dropDatabas3/chatpal/internal/http/v2/services/health"
)

// Deps contiene lo que necesitan los controllers de todos los dominios.
type Deps struct {
	Auth   auth.Deps
	Chat   chat.Replier
	Health healthsvc.HealthService
}

// Controllers agrupa los sub-controllers por dominio.
type Controllers struct {
	Auth   *auth.Controllers   // sesión, sign-in, callbacks de SDK, eventos
	Chat   *chat.Controllers   // chat de práctica
	Health *health.Controllers // readyz
}

// New crea el agregador de controllers. Único lugar donde se instancian.
func New(d Deps) *Controllers {
	return &Controllers{
		Auth:   auth.NewControllers(d.Auth),
		Chat:   chat.NewControllers(d.Chat),
		Health: health.NewControllers(d.Health),
	}
}
