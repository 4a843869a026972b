package auth

import (
	"net/http"

	dto "github.com/dropDatabas3/chatpal/internal/http/v2/dto/auth"
	httperrors "github.com/dropDatabas3/chatpal/internal/http/v2/errors"
	"github.com/dropDatabas3/chatpal/internal/http/v2/helpers"
	"github.com/dropDatabas3/chatpal/internal/observability/logger"
)

// ProvidersController handles GET /v2/auth/providers.
type ProvidersController struct {
	service Service
}

// NewProvidersController creates a new providers controller.
func NewProvidersController(service Service) *ProvidersController {
	return &ProvidersController{service: service}
}

// GetProviders lists registered providers in probing order with their
// initialization outcome.
func (c *ProvidersController) GetProviders(w http.ResponseWriter, r *http.Request) {
	log := logger.From(r.Context()).With(logger.Layer("controller"), logger.Op("ProvidersController.GetProviders"))

	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
		return
	}

	statuses := c.service.Providers()
	resp := dto.ProvidersResponse{
		Providers: make([]dto.ProviderInfo, 0, len(statuses)),
		Current:   c.service.Current().String(),
		State:     string(c.service.State()),
	}
	for _, s := range statuses {
		info := dto.ProviderInfo{
			Provider:    s.Provider.String(),
			Initialized: s.Initialized,
			Available:   s.Available(),
		}
		if s.Err != nil {
			info.Error = s.Err.Error()
		}
		resp.Providers = append(resp.Providers, info)
	}

	helpers.WriteJSON(w, http.StatusOK, resp)
	log.Debug("providers returned", logger.Count(len(resp.Providers)))
}
