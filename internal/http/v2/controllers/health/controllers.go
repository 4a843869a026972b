package health

import svc "github.com/dropDatabas3/chatpal/internal/http/v2/services/health"

// Controllers agrupa los controllers de health.
type Controllers struct {
	Health *HealthController
}

func NewControllers(s svc.HealthService) *Controllers {
	return &Controllers{Health: NewHealthController(s)}
}
