package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey struct{}

// ToContext inyecta un logger "scoped" en el contexto.
func ToContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From extrae el logger del contexto; si no hay, retorna el singleton.
func From(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return L()
	}
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok && l != nil {
		return l
	}
	return L()
}

// Scope agrega campos al logger del contexto y lo reinyecta. Lo usan el
// middleware de logging (request_id) y los sign-in en background, que
// sobreviven al request pero conservan sus campos.
func Scope(ctx context.Context, fields ...zap.Field) (context.Context, *zap.Logger) {
	l := From(ctx).With(fields...)
	return ToContext(ctx, l), l
}
