package delegated

import (
	"errors"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/dropDatabas3/socialgate/internal/observability/logger"
	"github.com/dropDatabas3/socialgate/internal/session"
)

const (
	// DefaultPathPrefix es el prefijo de las rutas de los providers.
	DefaultPathPrefix = "/auth"
	// OriginKey guarda en sesión el origen capturado en la fase request.
	OriginKey = "delegated.origin"
)

// Framework es el middleware que atiende las fases request y callback.
type Framework struct {
	prefix   string
	registry *Registry
}

type Option func(*Framework)

// WithPathPrefix cambia el prefijo común ("/auth" por defecto).
func WithPathPrefix(prefix string) Option {
	return func(f *Framework) {
		if prefix != "" {
			f.prefix = "/" + strings.Trim(prefix, "/")
		}
	}
}

func New(reg *Registry, opts ...Option) *Framework {
	f := &Framework{prefix: DefaultPathPrefix, registry: reg}
	for _, o := range opts {
		o(f)
	}
	return f
}

func (f *Framework) PathPrefix() string { return f.prefix }

// Providers lista los providers conocidos, ordenados.
func (f *Framework) Providers() []string { return f.registry.Names() }

// FailurePath es la ruta a la que se redirige cuando un callback falla.
func (f *Framework) FailurePath() string { return f.prefix + "/failure" }

type phase int

const (
	phaseNone phase = iota
	phaseRequest
	phaseCallback
)

// match resuelve el provider y la fase del path. Case-insensitive.
func (f *Framework) match(p string) (string, phase) {
	if len(p) <= len(f.prefix)+1 || !strings.EqualFold(p[:len(f.prefix)+1], f.prefix+"/") {
		return "", phaseNone
	}
	parts := strings.Split(p[len(f.prefix)+1:], "/")
	name, ok := f.lookup(parts[0])
	if !ok {
		return "", phaseNone
	}
	switch {
	case len(parts) == 1:
		return name, phaseRequest
	case len(parts) == 2 && strings.EqualFold(parts[1], "callback"):
		return name, phaseCallback
	}
	return "", phaseNone
}

func (f *Framework) lookup(segment string) (string, bool) {
	if segment == "" {
		return "", false
	}
	for _, n := range f.registry.Names() {
		if strings.EqualFold(n, segment) {
			return n, true
		}
	}
	return "", false
}

func (f *Framework) provider(name string) (Provider, error) {
	return f.registry.provider(name, ProviderConfig{
		RequestPath:  path.Join(f.prefix, name),
		CallbackPath: path.Join(f.prefix, name, "callback"),
	})
}

func (f *Framework) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name, ph := f.match(r.URL.Path)
		switch ph {
		case phaseRequest:
			f.requestPhase(w, r, name)
		case phaseCallback:
			f.callbackPhase(w, r, next, name)
		default:
			next.ServeHTTP(w, r)
		}
	})
}

func (f *Framework) requestPhase(w http.ResponseWriter, r *http.Request, name string) {
	log := logger.From(r.Context()).With(logger.Component("delegated"), logger.Provider(name))

	p, err := f.provider(name)
	if err != nil {
		log.Error("provider unavailable", logger.Err(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if sess := session.FromContext(r.Context()); sess != nil {
		if origin := requestOrigin(r); origin != "" {
			sess.Set(OriginKey, origin)
		}
	}

	log.Debug("request phase")
	if err := p.RequestPhase(w, r); err != nil {
		f.fail(w, r, name, err)
	}
}

func (f *Framework) callbackPhase(w http.ResponseWriter, r *http.Request, next http.Handler, name string) {
	log := logger.From(r.Context()).With(logger.Component("delegated"), logger.Provider(name))

	p, err := f.provider(name)
	if err != nil {
		log.Error("provider unavailable", logger.Err(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	res, err := p.CallbackPhase(r.Context(), r)
	if err != nil {
		f.fail(w, r, name, err)
		return
	}
	if res == nil {
		// Sin resultado: el handler siguiente ve el callback como ausente.
		log.Debug("callback phase produced no result")
		next.ServeHTTP(w, r)
		return
	}
	if res.Provider() == "" {
		res["provider"] = name
	}

	ctx := WithResult(r.Context(), res)
	if sess := session.FromContext(ctx); sess != nil {
		if origin, ok := sess.Get(OriginKey); ok {
			sess.Delete(OriginKey)
			ctx = WithOrigin(ctx, origin)
		}
	}
	log.Debug("callback phase complete", logger.String("uid", res.UID()))
	next.ServeHTTP(w, r.WithContext(ctx))
}

// fail redirige a {prefix}/failure con message, strategy y origin.
func (f *Framework) fail(w http.ResponseWriter, r *http.Request, name string, err error) {
	kind := KindUnknownError
	var fe *Failure
	if errors.As(err, &fe) && fe.Kind != "" {
		kind = fe.Kind
	}
	logger.From(r.Context()).Warn("provider failure",
		logger.Component("delegated"), logger.Provider(name), logger.String("kind", kind), logger.Err(err))

	q := url.Values{"message": {kind}, "strategy": {name}}
	if sess := session.FromContext(r.Context()); sess != nil {
		if origin, ok := sess.Get(OriginKey); ok {
			sess.Delete(OriginKey)
			q.Set("origin", origin)
		}
	}
	http.Redirect(w, r, f.FailurePath()+"?"+q.Encode(), http.StatusFound)
}

// requestOrigin toma ?origin= o, si no está, el Referer del mismo host.
// Solo se aceptan paths locales.
func requestOrigin(r *http.Request) string {
	if o := r.URL.Query().Get("origin"); o != "" {
		if IsLocalPath(o) {
			return o
		}
		return ""
	}
	ref, err := url.Parse(r.Referer())
	if err != nil || ref.Host == "" || !strings.EqualFold(ref.Host, r.Host) {
		return ""
	}
	o := ref.EscapedPath()
	if ref.RawQuery != "" {
		o += "?" + ref.RawQuery
	}
	if IsLocalPath(o) {
		return o
	}
	return ""
}

// IsLocalPath reporta si s es un path absoluto del mismo sitio.
func IsLocalPath(s string) bool {
	if !strings.HasPrefix(s, "/") || strings.HasPrefix(s, "//") || strings.HasPrefix(s, "/\\") {
		return false
	}
	u, err := url.Parse(s)
	return err == nil && u.Scheme == "" && u.Host == ""
}
