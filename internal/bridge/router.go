package bridge

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dropDatabas3/socialgate/internal/authn"
	httperrors "github.com/dropDatabas3/socialgate/internal/http/errors"
	"github.com/dropDatabas3/socialgate/internal/observability/logger"
)

const callbackSuffix = "/callback"

// Callback outcomes reported to an Observer.
const (
	OutcomeSuccess        = "success"
	OutcomeRedirect       = "redirect"
	OutcomeUnknownHandler = "unknown_handler"
	OutcomeBadSession     = "bad_session"
	OutcomeError          = "error"
)

// Observer receives router decisions. internal/metrics implements it.
type Observer interface {
	ObserveCallback(provider, outcome string)
	ObserveFailureReport(provider string)
}

type nopObserver struct{}

func (nopObserver) ObserveCallback(string, string) {}
func (nopObserver) ObserveFailureReport(string)    {}

// Router intercepts callback and failure-report paths.
type Router struct {
	reg          *Registry
	redirect     RedirectPolicy
	failureRoute bool
	observer     Observer
}

type RouterOption func(*Router)

// WithRedirectPolicy sets where a successful callback goes. Default "/".
func WithRedirectPolicy(p RedirectPolicy) RouterOption {
	return func(rt *Router) {
		if p != nil {
			rt.redirect = p
		}
	}
}

// WithRedirectPath is WithRedirectPolicy(StaticRedirect(p)).
func WithRedirectPath(p string) RouterOption {
	return WithRedirectPolicy(StaticRedirect(p))
}

// WithFailureRoute turns {prefix}/failure handling on or off. Default on.
func WithFailureRoute(on bool) RouterOption {
	return func(rt *Router) { rt.failureRoute = on }
}

func WithObserver(o Observer) RouterOption {
	return func(rt *Router) {
		if o != nil {
			rt.observer = o
		}
	}
}

func NewRouter(reg *Registry, opts ...RouterOption) *Router {
	rt := &Router{
		reg:          reg,
		redirect:     StaticRedirect("/"),
		failureRoute: true,
		observer:     nopObserver{},
	}
	for _, o := range opts {
		o(rt)
	}
	return rt
}

type route int

const (
	routePass route = iota
	routeCallback
	routeFailure
)

// classify resuelve la ruta. Prefijo y sufijos sin distinguir mayúsculas.
func (rt *Router) classify(p string) (route, string) {
	base := rt.reg.prefix + "/"
	if len(p) <= len(base) || !strings.EqualFold(p[:len(base)], base) {
		return routePass, ""
	}
	rest := p[len(base):]
	if n := len(rest) - len(callbackSuffix); n > 0 && strings.EqualFold(rest[n:], callbackSuffix) {
		return routeCallback, rest[:n]
	}
	if rt.failureRoute && strings.EqualFold(rest, "failure") {
		return routeFailure, ""
	}
	return routePass, ""
}

// Middleware wraps next; only callback and failure paths are intercepted.
func (rt *Router) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch kind, id := rt.classify(r.URL.Path); kind {
		case routeCallback:
			rt.callback(w, r, id)
		case routeFailure:
			rt.failure(w, r)
		default:
			next.ServeHTTP(w, r)
		}
	})
}

func (rt *Router) callback(w http.ResponseWriter, r *http.Request, segment string) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Component("bridge"), logger.Provider(segment))

	desc, ok := rt.reg.resolve(segment)
	if !ok || !rt.reg.strategies.Has(desc.StrategyName()) {
		log.Warn("callback for unknown handler")
		rt.observer.ObserveCallback("unknown", OutcomeUnknownHandler)
		httperrors.WritePlain(w, http.StatusUnauthorized, "Unknown Handler")
		return
	}
	id := desc.ProviderID()

	p := authn.FromContext(ctx)
	if p == nil {
		log.Error("callback without authn middleware", logger.Err(authn.ErrNoProxy))
		rt.observer.ObserveCallback(id, OutcomeError)
		httperrors.WriteError(w, httperrors.ErrInternalServerError.WithCause(authn.ErrNoProxy))
		return
	}

	scope, hasScope, err := rt.reg.scopes.Get(p.Session())
	if err != nil {
		log.Warn("rejecting callback with bad session scope", logger.Err(err))
		rt.observer.ObserveCallback(id, OutcomeBadSession)
		httperrors.WritePlain(w, http.StatusBadRequest, "Bad Session")
		return
	}

	opts := []authn.Option{authn.WithStrategies(desc.StrategyName())}
	if hasScope && scope != "" {
		opts = append(opts, authn.WithScope(scope))
		log = log.With(logger.Scope(scope))
	}

	authenticated, err := p.Authenticate(ctx, opts...)
	if err != nil {
		var te *TransformError
		if errors.As(err, &te) {
			log.Error("transform failed", logger.Err(err))
			err = httperrors.ErrTransformFailed.WithDetail(te.Provider).WithCause(err)
		} else {
			log.Error("authentication error", logger.Err(err))
		}
		rt.observer.ObserveCallback(id, OutcomeError)
		p.Raise(err)
		return
	}

	if authenticated {
		dest := rt.redirect(r)
		log.Debug("callback authenticated", logger.Outcome(OutcomeSuccess), logger.String("location", dest))
		rt.observer.ObserveCallback(id, OutcomeSuccess)
		http.Redirect(w, r, dest, http.StatusFound)
		return
	}

	back := r.URL.Path[:len(r.URL.Path)-len(callbackSuffix)]
	log.Debug("callback not authenticated", logger.Outcome(OutcomeRedirect), logger.String("location", back))
	rt.observer.ObserveCallback(id, OutcomeRedirect)
	http.Redirect(w, r, back, http.StatusFound)
}

// failure carga el mensaje en authn.Errors y aborta; authn renderiza la failure app.
func (rt *Router) failure(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	msg, strategy := q.Get("message"), q.Get("strategy")
	log := logger.From(r.Context()).With(logger.Component("bridge"), logger.Strategy(strategy))

	p := authn.FromContext(r.Context())
	if p == nil {
		log.Error("failure report without authn middleware", logger.Err(authn.ErrNoProxy))
		httperrors.WriteError(w, httperrors.ErrInternalServerError.WithCause(authn.ErrNoProxy))
		return
	}

	log.Info("provider reported failure", logger.String("message", msg), logger.String("origin", q.Get("origin")))
	label := "unknown"
	if d, ok := rt.reg.resolve(strategy); ok {
		label = d.ProviderID()
	}
	rt.observer.ObserveFailureReport(label)
	if msg != "" {
		p.Errors().Add("login", msg)
	}
	p.SetResult(authn.Fail(msg))
	p.Abort()
}
