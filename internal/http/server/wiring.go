// Package server arma el handler HTTP completo a partir de la configuración.
package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dropDatabas3/socialgate/internal/authn"
	"github.com/dropDatabas3/socialgate/internal/bridge"
	"github.com/dropDatabas3/socialgate/internal/cache"
	"github.com/dropDatabas3/socialgate/internal/config"
	"github.com/dropDatabas3/socialgate/internal/delegated"
	"github.com/dropDatabas3/socialgate/internal/http/middlewares"
	"github.com/dropDatabas3/socialgate/internal/metrics"
	"github.com/dropDatabas3/socialgate/internal/observability/logger"
	"github.com/dropDatabas3/socialgate/internal/session"
	"github.com/prometheus/client_golang/prometheus"
)

// App es el resultado de Build. Registry es el handle para cambiar transforms
// en runtime; no hay estado global.
type App struct {
	Handler   http.Handler
	Registry  *bridge.Registry
	Delegated *delegated.Framework
	Manager   *authn.Manager
	Metrics   *metrics.Metrics
	Cache     cache.Client

	cleanup func() error
}

// Close libera el cache.
func (a *App) Close() error {
	if a.cleanup == nil {
		return nil
	}
	return a.cleanup()
}

type buildOptions struct {
	cache      cache.Client
	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer
	transforms map[string]bridge.Transform
	providers  map[string]delegated.ProviderFactory
}

type Option func(*buildOptions)

// WithCache usa un cliente ya construido en lugar de cfg.Cache. Build no lo cierra.
func WithCache(c cache.Client) Option {
	return func(o *buildOptions) { o.cache = c }
}

// WithPrometheus registra las métricas en reg (por defecto el registry global).
func WithPrometheus(reg *prometheus.Registry) Option {
	return func(o *buildOptions) { o.registerer, o.gatherer = reg, reg }
}

// WithTransform instala un transform para providerID ("" = default global).
func WithTransform(providerID string, fn bridge.Transform) Option {
	return func(o *buildOptions) { o.transforms[providerID] = fn }
}

// WithProvider agrega un provider delegado además de "developer".
func WithProvider(name string, f delegated.ProviderFactory) Option {
	return func(o *buildOptions) { o.providers[name] = f }
}

// Build conecta session store, authn, framework delegado, bridge y la app.
//
// Orden de la cadena:
//
//	Recover -> RequestID -> Logging -> Metrics -> Session -> authn -> delegated -> bridge -> app
func Build(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	o := buildOptions{transforms: map[string]bridge.Transform{}, providers: map[string]delegated.ProviderFactory{}}
	for _, opt := range opts {
		opt(&o)
	}
	log := logger.L().With(logger.Component("server"))

	// 1. Cache + session store
	cleanup := func() error { return nil }
	cc := o.cache
	if cc == nil {
		var err error
		cc, err = cache.New(ctx, cache.Config{
			Driver:          cfg.Cache.Kind,
			Addr:            cfg.Cache.Redis.Addr,
			Password:        cfg.Cache.Redis.Password,
			DB:              cfg.Cache.Redis.DB,
			Prefix:          cfg.Cache.Redis.Prefix,
			DefaultTTL:      config.Dur(cfg.Cache.Memory.DefaultTTL, 12*time.Hour),
			CleanupInterval: config.Dur(cfg.Cache.Memory.CleanupInterval, 10*time.Minute),
		})
		if err != nil {
			return nil, fmt.Errorf("server: cache: %w", err)
		}
		cleanup = cc.Close
	}

	if cfg.Session.SecretGenerated {
		log.Warn("session.secret not set, using an ephemeral secret; sessions will not survive restarts")
	}
	ttl := config.Dur(cfg.Session.TTL, 12*time.Hour)
	codec, err := session.NewCodec([]byte(cfg.Session.Secret), ttl)
	if err != nil {
		_ = cleanup()
		return nil, fmt.Errorf("server: session codec: %w", err)
	}
	sessions := session.NewStore(cc, codec, session.Options{
		CookieName: cfg.Session.CookieName,
		Domain:     cfg.Session.Domain,
		TTL:        ttl,
		Secure:     cfg.Session.Secure,
		SameSite:   parseSameSite(cfg.Session.SameSite),
	})

	// 2. Framework delegado
	providers := delegated.NewRegistry()
	providers.RegisterFactory(delegated.DeveloperName, delegated.DeveloperFactory, cfg.Auth.ProviderOptions[delegated.DeveloperName])
	for name, f := range o.providers {
		providers.RegisterFactory(name, f, cfg.Auth.ProviderOptions[name])
	}
	framework := delegated.New(providers, delegated.WithPathPrefix(cfg.Auth.PathPrefix))

	// 3. Bridge: registro eager de todo provider conocido + los de config
	strategies := authn.NewStrategies()
	reg := bridge.NewRegistry(strategies,
		bridge.WithPathPrefix(cfg.Auth.PathPrefix),
		bridge.WithOriginHint(cfg.Auth.OriginHint),
		bridge.WithScopeStore(bridge.ScopeStore{Key: bridge.ScopeKey, Max: cfg.Auth.MaxScopeLength}),
	)
	if err := reg.RegisterAll(framework.Providers()...); err != nil {
		_ = cleanup()
		return nil, fmt.Errorf("server: register providers: %w", err)
	}
	if err := reg.RegisterAll(cfg.Auth.Providers...); err != nil {
		_ = cleanup()
		return nil, fmt.Errorf("server: register providers: %w", err)
	}
	for _, id := range cfg.Auth.Providers {
		if !providers.Has(id) {
			log.Warn("provider has no delegated implementation; callbacks will only redirect", logger.Provider(id))
		}
	}
	for id, fn := range o.transforms {
		if id == "" {
			reg.SetDefaultTransform(fn)
			continue
		}
		if err := reg.SetTransform(id, fn); err != nil {
			_ = cleanup()
			return nil, fmt.Errorf("server: transform: %w", err)
		}
	}

	// 4. authn manager
	defaults := make([]string, 0, len(cfg.Auth.Providers))
	for _, id := range cfg.Auth.Providers {
		defaults = append(defaults, bridge.StrategyName(id))
	}
	manager := authn.NewManager(authn.Config{
		Strategies:        strategies,
		DefaultStrategies: defaults,
		DefaultScope:      cfg.Auth.DefaultScope,
	})

	// 5. Métricas
	var m *metrics.Metrics
	routerOpts := []bridge.RouterOption{bridge.WithFailureRoute(cfg.Auth.FailureRoute)}
	if cfg.Auth.RedirectToOrigin {
		routerOpts = append(routerOpts, bridge.WithRedirectPolicy(bridge.OriginOr(cfg.Auth.RedirectAfterCallback)))
	} else {
		routerOpts = append(routerOpts, bridge.WithRedirectPath(cfg.Auth.RedirectAfterCallback))
	}
	if cfg.Metrics.Enabled {
		m, err = metrics.New(metrics.Config{
			Registerer:    o.registerer,
			Gatherer:      o.gatherer,
			AuthPrefix:    reg.PathPrefix(),
			KnownProvider: reg.Known,
		})
		if err != nil {
			_ = cleanup()
			return nil, fmt.Errorf("server: metrics: %w", err)
		}
		routerOpts = append(routerOpts, bridge.WithObserver(m))
	}
	router := bridge.NewRouter(reg, routerOpts...)

	// 6. App + cadena
	app := newAppRouter(appDeps{cfg: cfg, cache: cc, registry: reg, metrics: m})

	var metricsMW middlewares.Middleware
	if m != nil {
		metricsMW = m.Middleware
	}
	handler := middlewares.Chain(app,
		middlewares.WithRecover(),
		middlewares.WithRequestID(),
		middlewares.WithLogging(),
		metricsMW,
		sessions.Middleware,
		manager.Middleware,
		framework.Middleware,
		router.Middleware,
	)

	log.Info("handler ready",
		logger.String("path_prefix", reg.PathPrefix()),
		logger.Any("providers", reg.Providers()),
		logger.String("cache", cfg.Cache.Kind),
	)

	return &App{
		Handler:   handler,
		Registry:  reg,
		Delegated: framework,
		Manager:   manager,
		Metrics:   m,
		Cache:     cc,
		cleanup:   cleanup,
	}, nil
}

func parseSameSite(s string) http.SameSite {
	switch strings.ToLower(s) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

// NewHTTPServer arma el *http.Server con los timeouts de cfg.
func NewHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h,
		ReadTimeout:       config.Dur(cfg.Server.ReadTimeout, 10*time.Second),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      config.Dur(cfg.Server.WriteTimeout, 15*time.Second),
	}
}
