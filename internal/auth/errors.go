package auth

import (
	"errors"
	"fmt"

	"github.com/dropDatabas3/chatpal/internal/domain/identity"
)

// Errores del subsistema de autenticación. Usar errors.Is para compararlos.
var (
	// ErrInitTimeout: el SDK del provider no apareció dentro del plazo.
	ErrInitTimeout = errors.New("auth: provider SDK did not load in time")
	// ErrSignInFailed: el provider rechazó el login o falló un round trip.
	ErrSignInFailed = errors.New("auth: sign-in failed")
	// ErrProviderNotRegistered: se pidió un provider que no está configurado.
	ErrProviderNotRegistered = errors.New("auth: provider not registered")
	// ErrSignInInProgress: ya hay un login pendiente en ese adapter.
	ErrSignInInProgress = errors.New("auth: sign-in already in progress")
	// ErrSuperseded: un login más nuevo en el mismo adapter reemplazó a este.
	ErrSuperseded = errors.New("auth: superseded by a newer sign-in")
)

// SignInFailed wraps cause so that it matches both ErrSignInFailed and cause.
func SignInFailed(p identity.Provider, cause error) error {
	if cause == nil {
		return fmt.Errorf("%w: %s", ErrSignInFailed, p)
	}
	if errors.Is(cause, ErrSignInFailed) {
		return cause
	}
	return fmt.Errorf("%w: %s: %w", ErrSignInFailed, p, cause)
}
