package authn

import (
	"context"
	"net/http"
	"strings"

	httperrors "github.com/dropDatabas3/socialgate/internal/http/errors"
	"github.com/dropDatabas3/socialgate/internal/observability/logger"
	"github.com/dropDatabas3/socialgate/internal/session"
)

// DefaultScope es el scope usado cuando Authenticate no recibe WithScope.
const DefaultScope = "user"

// Config configura un Manager.
type Config struct {
	Strategies        *Strategies
	DefaultStrategies []string
	DefaultScope      string
	// FailureApp se ejecuta cuando un handler aborta sin redirect pendiente.
	FailureApp http.Handler
	// ErrorHandler renderiza los errores levantados con Proxy.Raise.
	ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)
	Serializer   Serializer
}

// Manager es el middleware que instala un Proxy por request y resuelve
// aborts y errores cuando el handler termina.
type Manager struct {
	cfg Config
}

func NewManager(cfg Config) *Manager {
	if cfg.Strategies == nil {
		cfg.Strategies = NewStrategies()
	}
	if cfg.DefaultScope == "" {
		cfg.DefaultScope = DefaultScope
	}
	if cfg.FailureApp == nil {
		cfg.FailureApp = http.HandlerFunc(DefaultFailureApp)
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = DefaultErrorHandler
	}
	if cfg.Serializer == nil {
		cfg.Serializer = JSONSerializer{}
	}
	return &Manager{cfg: cfg}
}

func (m *Manager) Strategies() *Strategies { return m.cfg.Strategies }

func (m *Manager) DefaultScope() string { return m.cfg.DefaultScope }

// Middleware requiere session.Store.Middleware más arriba en la cadena.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := session.FromContext(r.Context())
		if sess == nil {
			m.cfg.ErrorHandler(w, r, ErrNoSession)
			return
		}

		p := &Proxy{m: m, req: r, sess: sess, errors: newErrors(), users: map[string]any{}}
		r = r.WithContext(WithProxy(r.Context(), p))
		next.ServeHTTP(w, r)
		m.finish(w, r, p)
	})
}

func (m *Manager) finish(w http.ResponseWriter, r *http.Request, p *Proxy) {
	p.mu.Lock()
	err, aborted, res := p.err, p.aborted, p.result
	p.mu.Unlock()

	switch {
	case err != nil:
		m.cfg.ErrorHandler(w, r, err)
	case !aborted:
		return
	case res.Outcome == OutcomeRedirect:
		http.Redirect(w, r, res.RedirectURL(), http.StatusFound)
	default:
		m.cfg.FailureApp.ServeHTTP(w, r)
	}
}

// DefaultFailureApp responde 401 con los mensajes acumulados como detalle.
func DefaultFailureApp(w http.ResponseWriter, r *http.Request) {
	appErr := httperrors.ErrLoginFailed
	if p := FromContext(r.Context()); p != nil {
		msgs := p.Errors().Messages()
		if len(msgs) == 0 && p.Result().Message != "" {
			msgs = []string{p.Result().Message}
		}
		if len(msgs) > 0 {
			appErr = appErr.WithDetail(strings.Join(msgs, "; "))
		}
	}
	httperrors.WriteError(w, appErr)
}

// DefaultErrorHandler loguea el error y lo escribe como AppError.
func DefaultErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	appErr := httperrors.FromError(err)
	log := logger.From(r.Context()).With(logger.Component("authn"))
	if appErr.HTTPStatus >= http.StatusInternalServerError {
		log.Error("authentication error", logger.Err(err), logger.String("code", appErr.Code))
	} else {
		log.Warn("authentication error", logger.Err(err), logger.String("code", appErr.Code))
	}
	httperrors.WriteError(w, appErr)
}

type proxyKey struct{}

func WithProxy(ctx context.Context, p *Proxy) context.Context {
	return context.WithValue(ctx, proxyKey{}, p)
}

// FromContext devuelve el Proxy del request o nil.
func FromContext(ctx context.Context) *Proxy {
	p, _ := ctx.Value(proxyKey{}).(*Proxy)
	return p
}
