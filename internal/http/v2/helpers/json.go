// Package helpers tiene utilidades compartidas por los controllers v2.
package helpers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	httperrors "github.com/dropDatabas3/chatpal/internal/http/v2/errors"
)

// MaxBodyBytes es el límite por defecto del body JSON.
const MaxBodyBytes = 64 << 10

// ReadJSON decodifica JSON de forma tolerante (no falla por campos desconocidos).
// Valida Content-Type y limita el body a max bytes (0 = MaxBodyBytes).
// Un body vacío no es error.
func ReadJSON(w http.ResponseWriter, r *http.Request, v any, max int64) *httperrors.AppError {
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	if !strings.Contains(ct, "application/json") {
		return httperrors.ErrBadRequest.WithDetail("Content-Type debe ser application/json")
	}
	if max <= 0 {
		max = MaxBodyBytes
	}

	r.Body = http.MaxBytesReader(w, r.Body, max)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return httperrors.ErrBadRequest.WithDetail("body demasiado grande").WithCause(err)
		}
		return httperrors.ErrInvalidJSON.WithCause(err)
	}
	return nil
}

// WriteJSON escribe una respuesta JSON estándar.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
