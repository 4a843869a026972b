package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/dropDatabas3/chatpal/internal/auth"
	"github.com/dropDatabas3/chatpal/internal/chat"
	"github.com/dropDatabas3/chatpal/internal/domain/identity"
)

// AppError define la estructura estándar para errores de la API v2
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // causa original, solo para logs
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New crea un nuevo AppError
func New(status int, code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: status,
	}
}

// FromError convierte cualquier error en un AppError.
// Los sentinels de auth/chat se mapean a su status; el resto es 500.
func FromError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}

	switch {
	case stderrors.Is(err, auth.ErrProviderNotRegistered):
		return ErrProviderNotRegistered.WithCause(err)
	case stderrors.Is(err, auth.ErrSignInInProgress):
		return ErrSignInInProgress.WithCause(err)
	case stderrors.Is(err, auth.ErrInitTimeout):
		return ErrProviderUnavailable.WithCause(err)
	case stderrors.Is(err, auth.ErrSignInFailed):
		return ErrSignInFailed.WithCause(err)
	case stderrors.Is(err, identity.ErrUnknownProvider):
		return ErrProviderNotRegistered.WithCause(err)
	case stderrors.Is(err, chat.ErrEmptyMessage), stderrors.Is(err, chat.ErrMessageTooLong):
		return ErrInvalidMessage.WithDetail(err.Error()).WithCause(err)
	}
	return ErrInternalServerError.WithCause(err)
}

// WithDetail devuelve una COPIA con detalle, no muta las variables base.
func (e *AppError) WithDetail(detail string) *AppError {
	newErr := *e
	newErr.Detail = detail
	return &newErr
}

// WithCause devuelve una COPIA con la causa original.
func (e *AppError) WithCause(err error) *AppError {
	newErr := *e
	newErr.Err = err
	return &newErr
}

// =================================================================================
// ERRORES PREDEFINIDOS
// =================================================================================

// 4xx
var (
	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "La solicitud contiene sintaxis inválida o parámetros faltantes.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrInvalidJSON = &AppError{
		Code:       "INVALID_JSON",
		Message:    "El cuerpo de la solicitud no es un JSON válido.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrInvalidMessage = &AppError{
		Code:       "INVALID_MESSAGE",
		Message:    "El mensaje está vacío o es demasiado largo.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrUnauthorized = &AppError{
		Code:       "UNAUTHORIZED",
		Message:    "Se requiere una sesión activa.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrSignInFailed = &AppError{
		Code:       "SIGN_IN_FAILED",
		Message:    "No se pudo completar el inicio de sesión.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrForbidden = &AppError{
		Code:       "FORBIDDEN",
		Message:    "La solicitud fue rechazada.",
		HTTPStatus: http.StatusForbidden,
	}

	ErrProviderNotRegistered = &AppError{
		Code:       "PROVIDER_NOT_REGISTERED",
		Message:    "El proveedor de identidad no está habilitado.",
		HTTPStatus: http.StatusNotFound,
	}

	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "El recurso solicitado no existe.",
		HTTPStatus: http.StatusNotFound,
	}

	ErrMethodNotAllowed = &AppError{
		Code:       "METHOD_NOT_ALLOWED",
		Message:    "El método HTTP no está permitido para este recurso.",
		HTTPStatus: http.StatusMethodNotAllowed,
	}

	ErrSignInInProgress = &AppError{
		Code:       "SIGN_IN_IN_PROGRESS",
		Message:    "Ya hay un inicio de sesión en curso para este proveedor.",
		HTTPStatus: http.StatusConflict,
	}

	ErrRateLimitExceeded = &AppError{
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    "Demasiadas solicitudes. Intente nuevamente más tarde.",
		HTTPStatus: http.StatusTooManyRequests,
	}
)

// 5xx
var (
	ErrInternalServerError = &AppError{
		Code:       "INTERNAL_SERVER_ERROR",
		Message:    "Ocurrió un error inesperado en el servidor.",
		HTTPStatus: http.StatusInternalServerError,
	}

	ErrProviderUnavailable = &AppError{
		Code:       "PROVIDER_UNAVAILABLE",
		Message:    "El SDK del proveedor no terminó de cargar.",
		HTTPStatus: http.StatusServiceUnavailable,
	}
)
