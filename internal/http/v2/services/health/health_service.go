// Package health contiene el service para health checks.
package health

import (
	"context"
	"time"

	"github.com/dropDatabas3/chatpal/internal/auth"
	dto "github.com/dropDatabas3/chatpal/internal/http/v2/dto/health"
	"github.com/dropDatabas3/chatpal/internal/observability/logger"
)

// HealthService define las operaciones de health check.
type HealthService interface {
	Check(ctx context.Context) dto.HealthResponse
}

// AuthStatus abstrae lo que health necesita del orquestador.
type AuthStatus interface {
	State() auth.State
	Providers() []auth.ProviderStatus
}

// Deps contiene las dependencias inyectables.
type Deps struct {
	Auth       AuthStatus
	StoreCheck func(ctx context.Context) error
	Version    string
	Now        func() time.Time
}

type healthService struct {
	deps Deps
}

// NewHealthService crea un nuevo service de health check.
func NewHealthService(deps Deps) HealthService {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &healthService{deps: deps}
}

const storeCheckTimeout = 2 * time.Second

// Check arma el estado: unavailable si el store no responde, degraded si
// algún proveedor no cargó, ready en otro caso.
func (s *healthService) Check(ctx context.Context) dto.HealthResponse {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("health"),
		logger.Op("Check"),
	)

	resp := dto.HealthResponse{
		Status:     "ready",
		Components: make(map[string]dto.HealthStatus),
		Version:    s.deps.Version,
		Timestamp:  s.deps.Now().UTC(),
	}

	if s.deps.StoreCheck != nil {
		cctx, cancel := context.WithTimeout(ctx, storeCheckTimeout)
		err := s.deps.StoreCheck(cctx)
		cancel()
		if err != nil {
			log.Warn("session store check failed", logger.Err(err))
			resp.Components["session_store"] = dto.HealthStatus{Status: "error", Message: err.Error()}
			resp.Status = "unavailable"
		} else {
			resp.Components["session_store"] = dto.HealthStatus{Status: "ok"}
		}
	}

	if s.deps.Auth == nil {
		return resp
	}
	resp.AuthState = string(s.deps.Auth.State())
	for _, p := range s.deps.Auth.Providers() {
		name := "provider_" + p.Provider.String()
		switch {
		case p.Err != nil:
			resp.Components[name] = dto.HealthStatus{Status: "error", Message: p.Err.Error()}
			if resp.Status == "ready" {
				resp.Status = "degraded"
			}
		case p.Initialized:
			resp.Components[name] = dto.HealthStatus{Status: "ok"}
		default:
			resp.Components[name] = dto.HealthStatus{Status: "pending"}
		}
	}
	return resp
}
