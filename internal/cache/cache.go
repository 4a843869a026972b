// Package cache provee los backends clave/valor donde vive la sesión persistida.
//
// Drivers:
//   - memory: go-cache en proceso (tests, modo efímero)
//   - file:   un documento JSON en disco, sobrevive reinicios (default del CLI)
//   - redis:  go-redis, compartido entre procesos
//
// GetMany, SetMany y DeleteMany son una sola operación lógica en cada driver:
// la sesión lee, escribe y borra sus tres claves juntas y nunca observa un
// estado intermedio.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Client define las operaciones de un backend.
type Client interface {
	// Get obtiene un valor. Retorna ErrNotFound si no existe.
	Get(ctx context.Context, key string) (string, error)

	// GetMany lee todas las keys en una sola operación. Las keys ausentes (o
	// expiradas) no aparecen en el map.
	GetMany(ctx context.Context, keys ...string) (map[string]string, error)

	// Set guarda un valor. ttl 0 = sin expiración.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// SetMany guarda todas las entradas como una unidad, sin expiración.
	SetMany(ctx context.Context, entries map[string]string) error

	// Delete elimina una key. Borrar una key inexistente no es error.
	Delete(ctx context.Context, key string) error

	// DeleteMany elimina todas las keys como una unidad.
	DeleteMany(ctx context.Context, keys ...string) error

	// Exists verifica si una key existe.
	Exists(ctx context.Context, key string) (bool, error)

	// Ping verifica que el backend responde.
	Ping(ctx context.Context) error

	// Close libera recursos.
	Close() error
}

// Config para construir un Client.
type Config struct {
	Driver   string // "memory" | "file" | "redis"
	Path     string // file: ruta del documento JSON
	Addr     string // redis: host:port
	Password string
	DB       int
	Prefix   string // prefijo para todas las keys
}

// ErrNotFound indica que la key no existe (o expiró).
var ErrNotFound = errors.New("cache: key not found")

// IsNotFound verifica si err es (o envuelve) ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// New crea un Client según cfg.Driver.
func New(cfg Config) (Client, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "memory", "":
		return NewMemory(cfg.Prefix), nil
	case "file":
		return NewFile(cfg.Path, cfg.Prefix)
	case "redis":
		return NewRedis(cfg)
	default:
		return nil, fmt.Errorf("cache: unknown driver %q", cfg.Driver)
	}
}

func prefixed(prefix, k string) string {
	if prefix == "" {
		return k
	}
	return prefix + ":" + k
}
