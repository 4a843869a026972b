package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Bloque app (opcional en YAML). Si no está, queda vacío.
	App struct {
		// dev | staging | prod
		Env string `yaml:"app_env"`
	} `yaml:"app"`

	Server struct {
		Addr string `yaml:"addr"`
		// URL pública con la que el navegador llega al server; base de los callbacks.
		PublicURL          string   `yaml:"public_url"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	} `yaml:"server"`

	Log struct {
		Level  string `yaml:"level"`  // debug | info | warn | error
		Format string `yaml:"format"` // json | console; vacío => según app_env
	} `yaml:"log"`

	// Dónde vive la sesión persistida.
	Session struct {
		Driver string `yaml:"driver"` // memory | file | redis
		File   string `yaml:"file"`
		Prefix string `yaml:"prefix"`
	} `yaml:"session"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Auth struct {
		PollInterval  string `yaml:"poll_interval"`
		InitTimeout   string `yaml:"init_timeout"`
		SignInTimeout string `yaml:"signin_timeout"`
		// Reintento de discovery de los SDKs en background.
		SDKRetry string `yaml:"sdk_retry"`
	} `yaml:"auth"`

	// ───────── Identity Providers ─────────
	Providers struct {
		Google struct {
			Enabled      bool   `yaml:"enabled"`
			ClientID     string `yaml:"client_id"`
			AutoSelect   bool   `yaml:"auto_select"`
			DiscoveryURL string `yaml:"discovery_url"`
		} `yaml:"google"`
		Kakao struct {
			Enabled      bool   `yaml:"enabled"`
			AppKey       string `yaml:"app_key"`
			RESTAPIKey   string `yaml:"rest_api_key"`
			ClientSecret string `yaml:"client_secret"`
			RedirectURL  string `yaml:"redirect_url"` // si vacío => <server.public_url>/v2/auth/kakao/callback
			Scopes       string `yaml:"scopes"`
			DiscoveryURL string `yaml:"discovery_url"`
			APIBase      string `yaml:"api_base"`
			// Sin SDK cargado no hay forma de validar el token: por defecto no autenticado.
			TrustStoredSession bool `yaml:"trust_stored_session"`
		} `yaml:"kakao"`
	} `yaml:"providers"`

	LLM struct {
		APIKey    string `yaml:"api_key"` // vacío => respuestas mock offline
		BaseURL   string `yaml:"base_url"`
		Model     string `yaml:"model"`
		MockDelay string `yaml:"mock_delay"`
	} `yaml:"llm"`

	Rate struct {
		Enabled bool   `yaml:"enabled"`
		Backend string `yaml:"backend"` // memory | redis

		Chat struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"chat"`

		SignIn struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"signin"`
	} `yaml:"rate"`
}

// Load lee path (si existe), aplica defaults, overrides por env y valida.
// Un path vacío o inexistente no es error: se arranca con defaults + env.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(b, &c); err != nil {
				return nil, fmt.Errorf("config: %s: %w", path, err)
			}
		}
	}

	// Overrides por env antes de los defaults: los defaults dependen de valores
	// que el env puede cambiar (public_url, session.driver).
	c.applyEnvOverrides()
	c.applyDefaults()

	// Ruta del archivo de sesión relativa al YAML
	if p := strings.TrimSpace(c.Session.File); p != "" && !filepath.IsAbs(p) && path != "" {
		c.Session.File = filepath.Clean(filepath.Join(filepath.Dir(path), p))
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.PublicURL == "" {
		c.Server.PublicURL = "http://localhost" + portOf(c.Server.Addr)
	}
	c.Server.PublicURL = strings.TrimRight(c.Server.PublicURL, "/")
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	if c.Session.Driver == "" {
		c.Session.Driver = "file"
	}
	if c.Session.File == "" {
		c.Session.File = "./data/chatpal/session.json"
	}
	if c.Session.Prefix == "" {
		c.Session.Prefix = "chatpal"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}

	if c.Auth.PollInterval == "" {
		c.Auth.PollInterval = "100ms"
	}
	if c.Auth.InitTimeout == "" {
		c.Auth.InitTimeout = "10s"
	}
	if c.Auth.SignInTimeout == "" {
		c.Auth.SignInTimeout = "5m"
	}
	if c.Auth.SDKRetry == "" {
		c.Auth.SDKRetry = "1s"
	}

	if c.Providers.Kakao.RedirectURL == "" {
		c.Providers.Kakao.RedirectURL = c.Server.PublicURL + "/v2/auth/kakao/callback"
	}
	if c.Providers.Kakao.Scopes == "" {
		c.Providers.Kakao.Scopes = "profile_nickname,profile_image,account_email"
	}

	if c.LLM.MockDelay == "" {
		c.LLM.MockDelay = "1s"
	}

	if c.Rate.Backend == "" {
		c.Rate.Backend = "memory"
	}
	if c.Rate.Chat.Limit == 0 {
		c.Rate.Chat.Limit = 30
	}
	if c.Rate.Chat.Window == "" {
		c.Rate.Chat.Window = "1m"
	}
	if c.Rate.SignIn.Limit == 0 {
		c.Rate.SignIn.Limit = 10
	}
	if c.Rate.SignIn.Window == "" {
		c.Rate.SignIn.Window = "1m"
	}
}

// applyEnvOverrides: pisa config.yaml con variables de entorno.
func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = strings.ToLower(v)
	}
	if v, ok := getEnvStr("LOG_FORMAT"); ok {
		c.Log.Format = strings.ToLower(v)
	}

	// SERVER
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("SERVER_PUBLIC_URL"); ok {
		c.Server.PublicURL = v
	}
	if v, ok := getEnvCSV("SERVER_CORS_ALLOWED_ORIGINS"); ok {
		c.Server.CORSAllowedOrigins = v
	}

	// SESSION
	if v, ok := getEnvStr("SESSION_DRIVER"); ok {
		c.Session.Driver = strings.ToLower(v)
	}
	if v, ok := getEnvStr("SESSION_FILE"); ok {
		c.Session.File = v
	}
	if v, ok := getEnvStr("SESSION_PREFIX"); ok {
		c.Session.Prefix = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Redis.DB = v
	}

	// AUTH
	if v, ok := getEnvDur("AUTH_INIT_TIMEOUT"); ok {
		c.Auth.InitTimeout = v.String()
	}
	if v, ok := getEnvDur("AUTH_SIGNIN_TIMEOUT"); ok {
		c.Auth.SignInTimeout = v.String()
	}

	// GOOGLE: tener client id implica habilitado
	if v, ok := getEnvStr("GOOGLE_CLIENT_ID"); ok {
		c.Providers.Google.ClientID = v
		c.Providers.Google.Enabled = true
	}
	if v, ok := getEnvBool("GOOGLE_AUTO_SELECT"); ok {
		c.Providers.Google.AutoSelect = v
	}

	// KAKAO
	if v, ok := getEnvStr("KAKAO_APP_KEY"); ok {
		c.Providers.Kakao.AppKey = v
		c.Providers.Kakao.Enabled = true
	}
	if v, ok := getEnvStr("KAKAO_REST_API_KEY"); ok {
		c.Providers.Kakao.RESTAPIKey = v
		c.Providers.Kakao.Enabled = true
	}
	if v, ok := getEnvStr("KAKAO_CLIENT_SECRET"); ok {
		c.Providers.Kakao.ClientSecret = v
	}
	if v, ok := getEnvStr("KAKAO_REDIRECT_URL"); ok {
		c.Providers.Kakao.RedirectURL = v
	}
	if v, ok := getEnvBool("KAKAO_TRUST_STORED_SESSION"); ok {
		c.Providers.Kakao.TrustStoredSession = v
	}

	// LLM (API_KEY por compat con el front original)
	if v, ok := getEnvStr("LLM_API_KEY"); ok {
		c.LLM.APIKey = v
	} else if v, ok := getEnvStr("API_KEY"); ok {
		c.LLM.APIKey = v
	}
	if v, ok := getEnvStr("LLM_MODEL"); ok {
		c.LLM.Model = v
	}
	if v, ok := getEnvStr("LLM_BASE_URL"); ok {
		c.LLM.BaseURL = v
	}

	// RATE
	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := getEnvStr("RATE_BACKEND"); ok {
		c.Rate.Backend = strings.ToLower(v)
	}
}

// Validate performs validation of critical configuration values.
func (c *Config) Validate() error {
	var errs []error

	switch c.Session.Driver {
	case "memory", "redis":
	case "file":
		if strings.TrimSpace(c.Session.File) == "" {
			errs = append(errs, errors.New("session.file is required for the file driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("session.driver: unknown driver %q", c.Session.Driver))
	}
	switch c.Rate.Backend {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("rate.backend: unknown backend %q", c.Rate.Backend))
	}

	for name, v := range map[string]string{
		"auth.poll_interval":  c.Auth.PollInterval,
		"auth.init_timeout":   c.Auth.InitTimeout,
		"auth.signin_timeout": c.Auth.SignInTimeout,
		"auth.sdk_retry":      c.Auth.SDKRetry,
		"llm.mock_delay":      c.LLM.MockDelay,
		"rate.chat.window":    c.Rate.Chat.Window,
		"rate.signin.window":  c.Rate.SignIn.Window,
	} {
		if _, err := time.ParseDuration(v); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	if c.Providers.Google.Enabled && strings.TrimSpace(c.Providers.Google.ClientID) == "" {
		errs = append(errs, errors.New("providers.google.client_id is required when google is enabled"))
	}
	if c.Providers.Kakao.Enabled && c.KakaoClientID() == "" {
		errs = append(errs, errors.New("providers.kakao needs app_key or rest_api_key when enabled"))
	}
	return errors.Join(errs...)
}

// KakaoClientID es la REST API key, o la app key si no hay otra.
func (c *Config) KakaoClientID() string {
	if k := strings.TrimSpace(c.Providers.Kakao.RESTAPIKey); k != "" {
		return k
	}
	return strings.TrimSpace(c.Providers.Kakao.AppKey)
}

// Dur parsea una duración ya validada; def si está vacía o es inválida.
func Dur(s string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
		return d
	}
	return def
}

func (c *Config) IsProd() bool { return strings.EqualFold(c.App.Env, "prod") }

func portOf(addr string) string {
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		return addr[i:]
	}
	return ""
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}
func getEnvDur(key string) (time.Duration, bool) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d, true
		}
	}
	return 0, false
}
func getEnvCSV(key string) ([]string, bool) {
	if s, ok := getEnvStr(key); ok {
		if strings.TrimSpace(s) == "" {
			return []string{}, true
		}
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		return out, true
	}
	return nil, false
}
