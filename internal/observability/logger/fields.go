package logger

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// =================================================================================
// HTTP
// =================================================================================

func RequestID(v string) zap.Field { return zap.String("request_id", v) }

func Method(v string) zap.Field { return zap.String("method", v) }

func Path(v string) zap.Field { return zap.String("path", v) }

func Status(v int) zap.Field { return zap.Int("status", v) }

func Duration(v time.Duration) zap.Field { return zap.Duration("duration", v) }

func ClientIP(v string) zap.Field { return zap.String("client_ip", v) }

// =================================================================================
// AUTH
// =================================================================================

// Provider identifica el identity provider (google, kakao).
func Provider(v string) zap.Field { return zap.String("provider", v) }

// UID es el id del usuario dentro del provider (no es único entre providers).
func UID(v string) zap.Field { return zap.String("uid", v) }

// Event es el nombre de un evento del bus (googleLoginSuccess, ...).
func Event(v string) zap.Field { return zap.String("event", v) }

// State es el estado del orquestador de auth.
func State(v string) zap.Field { return zap.String("state", v) }

// =================================================================================
// SISTEMA
// =================================================================================

func Component(v string) zap.Field { return zap.String("component", v) }

func Op(v string) zap.Field { return zap.String("op", v) }

func Layer(v string) zap.Field { return zap.String("layer", v) }

func Err(err error) zap.Field { return zap.Error(err) }

func Key(v string) zap.Field { return zap.String("key", v) }

func Count(v int) zap.Field { return zap.Int("count", v) }

func String(key, v string) zap.Field { return zap.String(key, v) }

func Int(key string, v int) zap.Field { return zap.Int(key, v) }

func Bool(key string, v bool) zap.Field { return zap.Bool(key, v) }

func Any(key string, v any) zap.Field { return zap.Any(key, v) }

// Redacted loguea solo los primeros 4 caracteres y el largo. Para tokens,
// credenciales y el state de OAuth.
func Redacted(key, v string) zap.Field {
	if len(v) <= 4 {
		return zap.String(key, strings.Repeat("*", len(v)))
	}
	return zap.String(key, fmt.Sprintf("%s…(%d)", v[:4], len(v)))
}
