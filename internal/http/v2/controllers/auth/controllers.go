// Package auth contiene los controllers de autenticación V2.
package auth

import (
	"context"
	"net/http"
	"time"

	authn "github.com/dropDatabas3/chatpal/internal/auth"
	"github.com/dropDatabas3/chatpal/internal/domain/identity"
	"github.com/dropDatabas3/chatpal/internal/events"
	"github.com/dropDatabas3/chatpal/internal/sdk"
	"github.com/dropDatabas3/chatpal/internal/sdk/gis"
)

// Service es la superficie del orquestador que usan los controllers.
type Service interface {
	SignIn(ctx context.Context, p identity.Provider) (*identity.User, error)
	SignOut(ctx context.Context) error
	Session(ctx context.Context) (*identity.User, bool)
	State() authn.State
	Providers() []authn.ProviderStatus
	Current() identity.Provider
}

// Navigations entrega las URLs que un SDK quiere abrir en el navegador.
type Navigations interface {
	Watch(p identity.Provider) (<-chan sdk.Navigation, func())
}

// EventSource expone el bus de sesión como canal.
type EventSource interface {
	SubscribeChan(buffer int) (<-chan events.Event, func())
}

// GoogleBridge recibe el POST de Google Identity Services.
type GoogleBridge interface {
	HandleCredential(r *http.Request) error
	PageConfig() (gis.PageConfig, error)
}

// KakaoCallback recibe el redirect OAuth de Kakao.
type KakaoCallback interface {
	Complete(state, code, errCode, errDesc string) error
}

// Deps agrupa lo que necesitan los controllers de auth. Los loaders de SDK
// devuelven false mientras el SDK no terminó de cargar.
type Deps struct {
	Service     Service
	Navigations Navigations
	Events      EventSource

	Google func() (GoogleBridge, bool)
	Kakao  func() (KakaoCallback, bool)

	// SignInTimeout acota el sign-in en background (incluye al usuario).
	SignInTimeout time.Duration
	// RedirectWait es cuánto espera POST signin por una navegación o un
	// resultado antes de contestar pending.
	RedirectWait time.Duration
	// CallbackWait es cuánto espera el callback de Kakao al resultado.
	CallbackWait time.Duration
	// LoginURI es la URL absoluta de POST /v2/auth/google/credential.
	LoginURI string
}

// Controllers agrupa todos los controllers del dominio auth.
type Controllers struct {
	Providers *ProvidersController
	Session   *SessionController
	SignIn    *SignInController
	Events    *EventsController
	Google    *GoogleController
	Kakao     *KakaoController
}

// NewControllers crea el agregador de controllers auth.
func NewControllers(d Deps) *Controllers {
	if d.SignInTimeout <= 0 {
		d.SignInTimeout = 5 * time.Minute
	}
	if d.RedirectWait <= 0 {
		d.RedirectWait = 3 * time.Second
	}
	if d.CallbackWait <= 0 {
		d.CallbackWait = 15 * time.Second
	}
	return &Controllers{
		Providers: NewProvidersController(d.Service),
		Session:   NewSessionController(d.Service),
		SignIn:    NewSignInController(d.Service, d.Navigations, d.SignInTimeout, d.RedirectWait),
		Events:    NewEventsController(d.Events),
		Google:    NewGoogleController(d.Google, d.LoginURI),
		Kakao:     NewKakaoController(d.Kakao, d.Events, d.CallbackWait),
	}
}
