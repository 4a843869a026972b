// Package errors define el AppError de la API v2 y cómo se serializa.
package errors

import (
	"encoding/json"
	"net/http"

	"github.com/dropDatabas3/chatpal/internal/observability/logger"
)

// errorResponse controla exactamente qué campos ve el cliente.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// WriteError escribe la respuesta HTTP para err. La causa original nunca se
// expone; los 5xx se loguean con ella.
func WriteError(w http.ResponseWriter, err error) {
	appErr := FromError(err)

	if appErr.HTTPStatus >= http.StatusInternalServerError {
		logger.L().Error("request failed",
			logger.Layer("http"),
			logger.String("code", appErr.Code),
			logger.Err(appErr.Err),
		)
	}

	resp := errorResponse{
		Code:    appErr.Code,
		Message: appErr.Message,
		Detail:  appErr.Detail,
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(appErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(resp)
}
