package bridge

import (
	"context"
	"net/url"

	"github.com/dropDatabas3/socialgate/internal/authn"
	"github.com/dropDatabas3/socialgate/internal/delegated"
)

// Strategy is the authn strategy behind every registered provider.
type Strategy struct {
	desc *Descriptor
}

func (s *Strategy) Descriptor() *Descriptor { return s.desc }

// Authenticate records the attempt's scope in the session, then succeeds with
// the transformed external result or asks for a redirect to the provider.
func (s *Strategy) Authenticate(ctx context.Context, a *authn.Attempt) (authn.Result, error) {
	reg := s.desc.reg
	if a.Session != nil {
		if err := reg.scopes.Set(a.Session, a.Scope); err != nil {
			return authn.Result{}, err
		}
	}

	res, ok := delegated.ResultFrom(ctx)
	if !ok {
		var params url.Values
		if reg.originHint && a.Request != nil {
			params = url.Values{"origin": {a.Request.URL.RequestURI()}}
		}
		return authn.Redirect(reg.RequestPath(s.desc.id), params), nil
	}

	principal, err := s.desc.Transform()(res, s.desc.id)
	if err != nil {
		return authn.Result{}, &TransformError{Provider: s.desc.id, Err: err}
	}
	return authn.Success(principal), nil
}
