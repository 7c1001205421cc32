package bridge

import (
	"fmt"

	"github.com/dropDatabas3/socialgate/internal/delegated"
)

// Transform convierte un resultado externo en el principal que guarda authn.
type Transform func(res delegated.Result, providerID string) (any, error)

// DefaultTransform copia info, uid, credentials y provider. Un resultado vacío
// sigue siendo un resultado: los campos ausentes quedan en nil.
func DefaultTransform(res delegated.Result, providerID string) (any, error) {
	provider := res["provider"]
	if provider == nil || provider == "" {
		provider = providerID
	}
	return map[string]any{
		"info":        res["info"],
		"uid":         res["uid"],
		"credentials": res["credentials"],
		"provider":    provider,
	}, nil
}

// TransformError envuelve el error de un Transform. Es fatal para el intento.
type TransformError struct {
	Provider string
	Err      error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("bridge: transform for provider %q: %v", e.Provider, e.Err)
}

func (e *TransformError) Unwrap() error { return e.Err }
