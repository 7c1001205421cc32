package bridge

import (
	"net/http"

	"github.com/dropDatabas3/socialgate/internal/delegated"
)

// RedirectPolicy elige el destino después de un callback exitoso.
type RedirectPolicy func(r *http.Request) string

// StaticRedirect siempre devuelve p.
func StaticRedirect(p string) RedirectPolicy {
	return func(*http.Request) string { return p }
}

// OriginOr vuelve al origen capturado en la fase request si es un path local;
// si no, usa fallback.
func OriginOr(fallback string) RedirectPolicy {
	return func(r *http.Request) string {
		if o, ok := delegated.OriginFrom(r.Context()); ok && delegated.IsLocalPath(o) {
			return o
		}
		return fallback
	}
}
