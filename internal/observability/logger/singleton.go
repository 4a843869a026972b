package logger

import (
	"sync"

	"go.uber.org/zap"
)

var (
	mu       sync.RWMutex
	once     sync.Once
	instance *zap.Logger
	level    = zap.NewAtomicLevel()
)

// Init inicializa el singleton. Idempotente: solo la primera llamada tiene efecto.
func Init(cfg Config) {
	once.Do(func() {
		l := build(cfg, level)
		mu.Lock()
		instance = l
		mu.Unlock()
	})
}

// SetLevel cambia el nivel en caliente (ej. chatpal --verbose).
func SetLevel(lvl string) {
	level.SetLevel(parseLevel(lvl))
}

// Level retorna el nivel actual.
func Level() string {
	return level.Level().String()
}

// L retorna el logger del proceso. Sin Init() previo usa dev/info.
func L() *zap.Logger {
	mu.RLock()
	l := instance
	mu.RUnlock()
	if l != nil {
		return l
	}
	Init(Config{Env: "dev", Level: "info"})
	mu.Lock()
	defer mu.Unlock()
	if instance == nil {
		instance = build(Config{Env: "dev", Level: "info"}, level)
	}
	return instance
}

// Named retorna un logger con nombre de componente.
func Named(name string) *zap.Logger {
	return L().Named(name)
}

// With retorna un logger con campos persistentes.
func With(fields ...zap.Field) *zap.Logger {
	return L().With(fields...)
}

// SetForTests reemplaza el singleton y devuelve una función que restaura el anterior.
func SetForTests(l *zap.Logger) (restore func()) {
	mu.Lock()
	prev := instance
	instance = l
	mu.Unlock()
	return func() {
		mu.Lock()
		instance = prev
		mu.Unlock()
	}
}

// Sync flushea buffers pendientes. Llamar con defer en main.
func Sync() error {
	mu.RLock()
	l := instance
	mu.RUnlock()
	if l != nil {
		return l.Sync()
	}
	return nil
}
