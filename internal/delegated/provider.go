package delegated

import (
	"context"
	"fmt"
	"net/http"
)

// Provider is one external authentication method.
type Provider interface {
	Name() string
	// RequestPhase starts the external flow, usually by redirecting or rendering a form.
	RequestPhase(w http.ResponseWriter, r *http.Request) error
	// CallbackPhase turns the provider's callback request into a Result.
	// Errors should be *Failure so the kind reaches the failure route.
	// A nil Result with a nil error means the provider produced nothing: the
	// request reaches the next handler without a Result in its context, so
	// the bridge treats it as a callback with no external result.
	CallbackPhase(ctx context.Context, r *http.Request) (Result, error)
}

// ProviderConfig is passed to a factory when the provider is first used.
type ProviderConfig struct {
	Name         string
	RequestPath  string
	CallbackPath string
	Options      map[string]string
}

// Failure is a provider-reported error. Kind is sent as the failure message.
type Failure struct {
	Kind string
	Err  error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("delegated: %s: %v", f.Kind, f.Err)
	}
	return "delegated: " + f.Kind
}

func (f *Failure) Unwrap() error { return f.Err }

// Fail builds a Failure of the given kind.
func Fail(kind string, err error) *Failure { return &Failure{Kind: kind, Err: err} }

// Failure kinds used by the built-in providers.
const (
	KindInvalidCredentials = "invalid_credentials"
	KindUnknownError       = "unknown_error"
)
