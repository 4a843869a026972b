package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	ctrl "github.com/dropDatabas3/chatpal/internal/http/v2/controllers/health"
)

// HealthRouterDeps contiene las dependencias para el router de health.
type HealthRouterDeps struct {
	Controllers *ctrl.Controllers
	Metrics     http.Handler
}

// RegisterHealthRoutes registra /readyz y /metrics. Públicos, sin auth.
func RegisterHealthRoutes(r chi.Router, deps HealthRouterDeps) {
	r.Get("/readyz", deps.Controllers.Health.Readyz)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}
}
