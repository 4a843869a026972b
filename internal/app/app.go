// Package app es el composition root: arma store, bus, SDKs, adapters,
// orquestador, chat y el handler HTTP a partir de la config.
package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/dropDatabas3/chatpal/internal/auth"
	"github.com/dropDatabas3/chatpal/internal/auth/providers/google"
	kakaoauth "github.com/dropDatabas3/chatpal/internal/auth/providers/kakao"
	"github.com/dropDatabas3/chatpal/internal/cache"
	"github.com/dropDatabas3/chatpal/internal/chat"
	"github.com/dropDatabas3/chatpal/internal/config"
	"github.com/dropDatabas3/chatpal/internal/domain/identity"
	"github.com/dropDatabas3/chatpal/internal/events"
	"github.com/dropDatabas3/chatpal/internal/http/v2/controllers"
	authctrl "github.com/dropDatabas3/chatpal/internal/http/v2/controllers/auth"
	"github.com/dropDatabas3/chatpal/internal/http/v2/router"
	healthsvc "github.com/dropDatabas3/chatpal/internal/http/v2/services/health"
	"github.com/dropDatabas3/chatpal/internal/metrics"
	"github.com/dropDatabas3/chatpal/internal/observability/logger"
	"github.com/dropDatabas3/chatpal/internal/rate"
	"github.com/dropDatabas3/chatpal/internal/sdk"
	"github.com/dropDatabas3/chatpal/internal/sdk/gis"
	"github.com/dropDatabas3/chatpal/internal/sdk/kakao"
	"github.com/dropDatabas3/chatpal/internal/session"
)

// DiscoveryOff en providers.*.discovery_url salta el discovery (tests, offline).
const DiscoveryOff = "off"

// Version se inyecta con -ldflags "-X .../internal/app.Version=...".
var Version = "dev"

// Options ajusta lo que no viene de la config.
type Options struct {
	// Registerer para las métricas; nil usa el default de prometheus.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
	// HTTPClient para discovery, token exchange y Kakao API.
	HTTPClient *http.Client
}

// App es la aplicación cableada.
type App struct {
	Config       *config.Config
	KV           cache.Client
	Store        *session.Store
	Bus          *events.Bus
	Relay        *sdk.Relay
	Orchestrator *auth.Orchestrator
	Chat         *chat.Service
	Handler      http.Handler

	googleSDK *sdk.Slot[*gis.Bridge]
	kakaoSDK  *sdk.Slot[*kakao.Client]
	http      *http.Client
	closers   []func() error
}

// New arma la aplicación. No toca la red: los SDKs se cargan en Start.
func New(cfg *config.Config, opts Options) (*App, error) {
	log := logger.Named("app")
	if cfg.IsProd() && !strings.HasPrefix(cfg.Server.PublicURL, "https://") {
		log.Warn("public_url is not https; the google csrf cookie and kakao redirect need it in prod",
			logger.String("public_url", cfg.Server.PublicURL))
	}

	a := &App{
		Config:    cfg,
		Relay:     sdk.NewRelay(),
		googleSDK: sdk.NewSlot[*gis.Bridge](),
		kakaoSDK:  sdk.NewSlot[*kakao.Client](),
		http:      opts.HTTPClient,
	}
	if a.http == nil {
		a.http = &http.Client{Timeout: 10 * time.Second}
	}

	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if err := metrics.Register(reg); err != nil {
		return nil, fmt.Errorf("app: metrics: %w", err)
	}

	// 1. Store de sesión
	kv, err := cache.New(cache.Config{
		Driver:   cfg.Session.Driver,
		Path:     cfg.Session.File,
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Prefix:   cfg.Session.Prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("app: session store: %w", err)
	}
	a.KV = kv
	a.closers = append(a.closers, kv.Close)
	a.Store = session.NewStore(kv)

	// 2. Bus de eventos
	a.Bus = events.NewBus(events.WithObserver(func(ev events.Event) {
		metrics.AuthEvents.WithLabelValues(ev.Name()).Inc()
	}))

	// 3. Adapters, en orden de registro = orden de sondeo
	poll := config.Dur(cfg.Auth.PollInterval, auth.DefaultPollInterval)
	initTimeout := config.Dur(cfg.Auth.InitTimeout, auth.DefaultInitTimeout)

	var adapters []auth.Adapter
	if cfg.Providers.Google.Enabled {
		adapters = append(adapters, google.New(google.Options{
			ClientID: cfg.Providers.Google.ClientID,
			Loader: func() (google.IdentityServices, bool) {
				b, ok := a.googleSDK.Load()
				if !ok {
					return nil, false
				}
				return b, true
			},
			Store:        a.Store,
			Bus:          a.Bus,
			AutoSelect:   cfg.Providers.Google.AutoSelect,
			PollInterval: poll,
			InitTimeout:  initTimeout,
		}))
	}
	if cfg.Providers.Kakao.Enabled {
		adapters = append(adapters, kakaoauth.New(kakaoauth.Options{
			AppKey: cfg.KakaoClientID(),
			Scopes: cfg.Providers.Kakao.Scopes,
			Loader: func() (kakaoauth.SDK, bool) {
				c, ok := a.kakaoSDK.Load()
				if !ok {
					return nil, false
				}
				return c, true
			},
			Store:              a.Store,
			Bus:                a.Bus,
			TrustStoredSession: cfg.Providers.Kakao.TrustStoredSession,
			PollInterval:       poll,
			InitTimeout:        initTimeout,
		}))
	}
	if len(adapters) == 0 {
		log.Warn("no identity provider enabled")
	}

	// 4. Orquestador
	stateNames := make([]string, 0, len(auth.States()))
	for _, s := range auth.States() {
		stateNames = append(stateNames, string(s))
	}
	a.Orchestrator = auth.New(a.Store, a.Bus, adapters,
		auth.WithStateObserver(func(s auth.State) {
			metrics.SetAuthState(string(s), stateNames...)
		}),
		auth.WithSignInObserver(func(p identity.Provider, outcome string) {
			metrics.SignIns.WithLabelValues(p.String(), outcome).Inc()
		}),
	)
	a.closers = append(a.closers, func() error { a.Orchestrator.Close(); return nil })

	// 5. Chat
	chatOpts := chat.Options{
		MockDelay: config.Dur(cfg.LLM.MockDelay, time.Second),
		OnReply:   metrics.ObserveChat,
	}
	if strings.TrimSpace(cfg.LLM.APIKey) != "" {
		chatOpts.Completer = chat.NewOpenAICompleter(chat.OpenAIConfig{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
		})
	} else {
		log.Info("llm api key not set, chat runs offline")
	}
	a.Chat = chat.NewService(chatOpts)

	// 6. Rate limiters
	signInLimiter, chatLimiter, err := a.limiters()
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	// 7. HTTP
	var metricsHandler http.Handler = promhttp.Handler()
	if opts.Gatherer != nil {
		metricsHandler = promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})
	}
	ctrls := controllers.New(controllers.Deps{
		Auth: authctrl.Deps{
			Service:       a.Orchestrator,
			Navigations:   a.Relay,
			Events:        a.Bus,
			Google:        a.googleBridge,
			Kakao:         a.kakaoCallback,
			SignInTimeout: config.Dur(cfg.Auth.SignInTimeout, 5*time.Minute),
			LoginURI:      cfg.Server.PublicURL + "/v2/auth/google/credential",
		},
		Chat: a.Chat,
		Health: healthsvc.NewHealthService(healthsvc.Deps{
			Auth:       a.Orchestrator,
			StoreCheck: kv.Ping,
			Version:    Version,
		}),
	})
	a.Handler = router.New(router.Deps{
		Controllers:   ctrls,
		Sessions:      a.Orchestrator,
		SignInLimiter: signInLimiter,
		ChatLimiter:   chatLimiter,
		CORSOrigins:   cfg.Server.CORSAllowedOrigins,
		Metrics:       metricsHandler,
	})

	return a, nil
}

// Start carga los SDKs en background y espera a que todos los adapters
// terminen de inicializar (con éxito o no). Los SDKs siguen reintentando
// hasta que ctx termina.
func (a *App) Start(ctx context.Context) {
	retry := config.Dur(a.Config.Auth.SDKRetry, time.Second)
	if a.Config.Providers.Google.Enabled {
		sdk.Bootstrap(ctx, "google", a.googleSDK, retry, a.buildGoogle)
	}
	if a.Config.Providers.Kakao.Enabled {
		sdk.Bootstrap(ctx, "kakao", a.kakaoSDK, retry, a.buildKakao)
	}
	a.Orchestrator.InitializeAll(ctx)
	logger.From(ctx).Info("auth ready",
		logger.Component("app"),
		logger.State(string(a.Orchestrator.State())),
		logger.Provider(a.Orchestrator.Current().String()),
	)
}

// Close libera recursos en orden inverso.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

func (a *App) buildGoogle(ctx context.Context) (*gis.Bridge, error) {
	if u := discoveryURL(a.Config.Providers.Google.DiscoveryURL, sdk.GoogleDiscoveryURL); u != "" {
		if _, err := sdk.Discover(ctx, a.http, u); err != nil {
			return nil, err
		}
	}
	return gis.NewBridge(a.Relay, a.Config.Server.PublicURL+"/v2/auth/google/prompt"), nil
}

func (a *App) buildKakao(ctx context.Context) (*kakao.Client, error) {
	k := a.Config.Providers.Kakao
	c := kakao.NewClient(kakao.Config{
		ClientID:     a.Config.KakaoClientID(),
		ClientSecret: k.ClientSecret,
		RedirectURL:  k.RedirectURL,
		APIBase:      k.APIBase,
		HTTPClient:   a.http,
	}, a.Relay)
	if u := discoveryURL(k.DiscoveryURL, sdk.KakaoDiscoveryURL); u != "" {
		doc, err := sdk.Discover(ctx, a.http, u)
		if err != nil {
			return nil, err
		}
		c.WithDiscovery(doc)
	}
	return c, nil
}

func (a *App) googleBridge() (authctrl.GoogleBridge, bool) {
	b, ok := a.googleSDK.Load()
	if !ok {
		return nil, false
	}
	return b, true
}

func (a *App) kakaoCallback() (authctrl.KakaoCallback, bool) {
	c, ok := a.kakaoSDK.Load()
	if !ok {
		return nil, false
	}
	return c, true
}

// limiters devuelve (signin, chat). Deshabilitado => ambos nil.
func (a *App) limiters() (rate.Limiter, rate.Limiter, error) {
	cfg := a.Config
	if !cfg.Rate.Enabled {
		return nil, nil, nil
	}
	signInWin := config.Dur(cfg.Rate.SignIn.Window, time.Minute)
	chatWin := config.Dur(cfg.Rate.Chat.Window, time.Minute)

	if cfg.Rate.Backend != "redis" {
		return rate.NewMemoryLimiter(cfg.Rate.SignIn.Limit, signInWin),
			rate.NewMemoryLimiter(cfg.Rate.Chat.Limit, chatWin), nil
	}

	// Reusar la conexión del store si ya es Redis.
	var rdb *redis.Client
	if raw, ok := a.KV.(interface{ Raw() *redis.Client }); ok {
		rdb = raw.Raw()
	} else {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.closers = append(a.closers, rdb.Close)
	}
	prefix := cfg.Session.Prefix + ":rl:"
	return rate.NewRedisLimiter(rdb, prefix+"signin:", cfg.Rate.SignIn.Limit, signInWin),
		rate.NewRedisLimiter(rdb, prefix+"chat:", cfg.Rate.Chat.Limit, chatWin), nil
}

func discoveryURL(configured, def string) string {
	switch strings.TrimSpace(configured) {
	case DiscoveryOff:
		return ""
	case "":
		return def
	default:
		return configured
	}
}
