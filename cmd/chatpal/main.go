package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/chatpal/internal/app"
	"github.com/dropDatabas3/chatpal/internal/config"
	"github.com/dropDatabas3/chatpal/internal/http/v2/server"
	"github.com/dropDatabas3/chatpal/internal/observability/logger"
)

func main() {
	// .env opcional
	_ = godotenv.Load()

	var (
		cfgPath = envOr("CHATPAL_CONFIG", "config.yaml")
		out     = envOr("CHATPAL_OUT", "text")
		verbose bool
		cfg     *config.Config
	)

	root := &cobra.Command{
		Use:           "chatpal",
		Short:         "ChatPal: login multi-proveedor (Google, Kakao) y chat",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			cfg = c
			logger.Init(logger.Config{
				Env:         cfg.App.Env,
				Level:       cfg.Log.Level,
				Format:      cfg.Log.Format,
				ServiceName: "chatpal",
				Version:     app.Version,
			})
			if verbose {
				logger.SetLevel("debug")
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", cfgPath, "ruta del config.yaml (env CHATPAL_CONFIG)")
	root.PersistentFlags().StringVar(&out, "out", out, "formato de salida: text|json (env CHATPAL_OUT)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "logs en nivel debug")

	// serve
	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Levanta el server HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.New(cfg, app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()

			go a.Start(ctx)

			logger.With(logger.Component("cli"), logger.Op("serve")).Info("listening",
				logger.String("addr", cfg.Server.Addr),
				logger.String("public_url", cfg.Server.PublicURL),
			)
			return server.New(cfg.Server.Addr, a.Handler).Run(ctx)
		},
	})

	// status
	root.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Muestra la sesión persistida y el estado de cada proveedor",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := started(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			user, live := a.Orchestrator.Session(ctx)

			type provider struct {
				Name        string `json:"name"`
				Initialized bool   `json:"initialized"`
				Error       string `json:"error,omitempty"`
			}
			report := struct {
				State         string     `json:"state"`
				Authenticated bool       `json:"authenticated"`
				Current       string     `json:"current,omitempty"`
				User          any        `json:"user,omitempty"`
				Providers     []provider `json:"providers"`
			}{
				State:         string(a.Orchestrator.State()),
				Authenticated: user != nil && live,
				Current:       a.Orchestrator.Current().String(),
			}
			if user != nil {
				report.User = user
			}
			for _, p := range a.Orchestrator.Providers() {
				pr := provider{Name: p.Provider.String(), Initialized: p.Initialized}
				if p.Err != nil {
					pr.Error = p.Err.Error()
				}
				report.Providers = append(report.Providers, pr)
			}

			if out == "json" {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			fmt.Printf("state=%s authenticated=%t\n", report.State, report.Authenticated)
			if user != nil {
				fmt.Printf("user uid=%s provider=%s name=%s email=%s\n",
					user.UID, user.Provider, deref(user.DisplayName), deref(user.Email))
			}
			for _, p := range report.Providers {
				fmt.Printf("provider %-6s initialized=%t %s\n", p.Name, p.Initialized, p.Error)
			}
			return nil
		},
	})

	// logout
	root.AddCommand(&cobra.Command{
		Use:   "logout",
		Short: "Cierra la sesión persistida",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := started(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Orchestrator.SignOut(cmd.Context()); err != nil {
				return fmt.Errorf("logout: %w", err)
			}
			fmt.Println("signed out")
			return nil
		},
	})

	// version
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Imprime la versión",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(app.Version)
		},
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// started arma la app y espera a que los proveedores terminen de inicializar.
func started(ctx context.Context, cfg *config.Config) (*app.App, error) {
	a, err := app.New(cfg, app.Options{Registerer: prometheus.NewRegistry()})
	if err != nil {
		return nil, err
	}
	wait := config.Dur(cfg.Auth.InitTimeout, 10*time.Second) + time.Second
	sctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	a.Start(sctx)
	return a, nil
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
