package middlewares

import (
	"context"

	"github.com/dropDatabas3/chatpal/internal/domain/identity"
)

type ctxKey string

const (
	ctxRequestIDKey ctxKey = "request_id"
	ctxUserKey      ctxKey = "user"
)

func setRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxRequestIDKey, requestID)
}

// WithUser inyecta el usuario autenticado (lo usa WithRequireAuth).
func WithUser(ctx context.Context, u *identity.User) context.Context {
	return context.WithValue(ctx, ctxUserKey, u)
}

// GetRequestID obtiene el request ID del contexto, "" si no hay.
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxRequestIDKey).(string); ok {
		return v
	}
	return ""
}

// GetUser obtiene el usuario autenticado; nil fuera de rutas protegidas.
func GetUser(ctx context.Context) *identity.User {
	if u, ok := ctx.Value(ctxUserKey).(*identity.User); ok {
		return u
	}
	return nil
}
