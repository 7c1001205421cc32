package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/socialgate/internal/cache"
	"github.com/dropDatabas3/socialgate/internal/config"
	"github.com/dropDatabas3/socialgate/internal/http/server"
	"github.com/dropDatabas3/socialgate/internal/observability/logger"
)

// version se inyecta con -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func newRootCmd() *cobra.Command {
	var (
		configPath = envOr("SOCIALGATE_CONFIG", "")
		envFile    = ".env"
	)

	root := &cobra.Command{
		Use:           "socialgate",
		Short:         "Gateway de login social sobre sesiones",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .env es opcional; las variables del sistema siguen aplicando.
			if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("load %s: %w", envFile, err)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", configPath, "Archivo YAML de configuración (env SOCIALGATE_CONFIG)")
	root.PersistentFlags().StringVar(&envFile, "env-file", envFile, "Archivo .env a cargar antes de leer la config")

	load := func() (*config.Config, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level, ServiceName: "socialgate", Version: version})
		return cfg, nil
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Levanta el servidor HTTP",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := load()
				if err != nil {
					return err
				}
				defer func() { _ = logger.Sync() }()
				return serve(cmd.Context(), cfg)
			},
		},
		&cobra.Command{
			Use:   "providers",
			Short: "Lista los providers registrados y sus estrategias",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := load()
				if err != nil {
					return err
				}
				return listProviders(cmd, cfg)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Imprime la versión",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintln(cmd.OutOrStdout(), version)
			},
		},
	)
	return root
}

func serve(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	log := logger.Named("serve")

	app, err := server.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Warn("cleanup error", logger.Err(err))
		}
	}()

	srv := server.NewHTTPServer(cfg, app.Handler)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("listening", logger.String("addr", cfg.Server.Addr), logger.String("env", cfg.App.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Dur(cfg.Server.ShutdownTimeout, 10*time.Second))
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// listProviders arma el handler con cache en memoria para no depender de redis.
func listProviders(cmd *cobra.Command, cfg *config.Config) error {
	mem := cache.NewMemory(cache.Config{DefaultTTL: time.Minute})
	defer mem.Close()

	cfg.Metrics.Enabled = false
	app, err := server.Build(cmd.Context(), cfg, server.WithCache(mem))
	if err != nil {
		return err
	}
	defer app.Close()

	implemented := map[string]bool{}
	for _, name := range app.Delegated.Providers() {
		implemented[name] = true
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROVIDER\tSTRATEGY\tREQUEST PATH\tCALLBACK PATH\tDELEGATED")
	for _, id := range app.Registry.Providers() {
		d, _ := app.Registry.Lookup(id)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\n", id, d.StrategyName(),
			app.Registry.RequestPath(id), app.Registry.RequestPath(id)+"/callback", implemented[id])
	}
	return tw.Flush()
}
