package middlewares

import (
	"context"
	"net/http"

	"github.com/dropDatabas3/chatpal/internal/domain/identity"
	"github.com/dropDatabas3/chatpal/internal/http/v2/errors"
)

// SessionReader resuelve la sesión actual (lo implementa auth.Orchestrator).
type SessionReader interface {
	Session(ctx context.Context) (*identity.User, bool)
}

// WithRequireAuth deja pasar solo con una sesión viva e inyecta el usuario
// en el contexto.
func WithRequireAuth(sessions SessionReader) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, live := sessions.Session(r.Context())
			if u == nil || !live {
				w.Header().Set("WWW-Authenticate", `Session realm="chatpal"`)
				errors.WriteError(w, errors.ErrUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}
