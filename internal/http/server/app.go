package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/socialgate/internal/authn"
	"github.com/dropDatabas3/socialgate/internal/bridge"
	"github.com/dropDatabas3/socialgate/internal/cache"
	"github.com/dropDatabas3/socialgate/internal/config"
	httperrors "github.com/dropDatabas3/socialgate/internal/http/errors"
	"github.com/dropDatabas3/socialgate/internal/metrics"
	"github.com/dropDatabas3/socialgate/internal/observability/logger"
)

type appDeps struct {
	cfg      *config.Config
	cache    cache.Client
	registry *bridge.Registry
	metrics  *metrics.Metrics
}

// newAppRouter es la aplicación envuelta por el bridge.
func newAppRouter(d appDeps) http.Handler {
	r := chi.NewRouter()
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})

	r.Get("/", d.index)
	r.Get("/me", d.me)
	r.Post("/logout", d.logout)
	r.Get("/healthz", d.healthz)
	if d.metrics != nil {
		r.Method(http.MethodGet, d.cfg.Metrics.Path, d.metrics.Handler())
	}
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (d appDeps) proxy(w http.ResponseWriter, r *http.Request) *authn.Proxy {
	p := authn.FromContext(r.Context())
	if p == nil {
		httperrors.WriteError(w, httperrors.ErrInternalServerError.WithCause(authn.ErrNoProxy))
	}
	return p
}

func (d appDeps) index(w http.ResponseWriter, r *http.Request) {
	p := d.proxy(w, r)
	if p == nil {
		return
	}
	login := map[string]string{}
	for _, id := range d.registry.Providers() {
		login[id] = d.registry.RequestPath(id)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": p.Authenticated(d.cfg.Auth.DefaultScope),
		"login":         login,
	})
}

// me exige usuario; sin él authn redirige al primer provider configurado.
func (d appDeps) me(w http.ResponseWriter, r *http.Request) {
	p := d.proxy(w, r)
	if p == nil {
		return
	}
	ok, err := p.AuthenticateOrAbort(r.Context())
	if err != nil {
		p.Raise(err)
		return
	}
	if !ok {
		return
	}
	u, err := p.User(d.cfg.Auth.DefaultScope)
	if err != nil {
		p.Raise(err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scope": d.cfg.Auth.DefaultScope, "user": u})
}

func (d appDeps) logout(w http.ResponseWriter, r *http.Request) {
	p := d.proxy(w, r)
	if p == nil {
		return
	}
	p.Logout()
	logger.From(r.Context()).Debug("session destroyed", logger.SessionID(p.Session().ID()))
	w.WriteHeader(http.StatusNoContent)
}

func (d appDeps) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := d.cache.Ping(ctx); err != nil {
		logger.From(ctx).Warn("health check failed", logger.Err(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "cache": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
