// Package delegated implements a small delegated-authentication framework.
//
// Each provider owns two paths under a common prefix: the request phase
// ({prefix}/{provider}) that starts the external flow, and the callback phase
// ({prefix}/{provider}/callback) where the provider reports back. A successful
// callback places a Result on the request context and hands the request to the
// next handler, which decides what to do with it. A failed callback redirects
// to {prefix}/failure with message, strategy and origin query parameters.
package delegated

import "context"

// Result is the normalized external authentication result.
//
// Conventional keys: provider, uid, info, credentials, extra.
type Result map[string]any

func (r Result) Provider() string { return r.str("provider") }

func (r Result) UID() string { return r.str("uid") }

func (r Result) Info() map[string]any { return r.obj("info") }

func (r Result) Credentials() map[string]any { return r.obj("credentials") }

func (r Result) Extra() map[string]any { return r.obj("extra") }

func (r Result) str(k string) string {
	s, _ := r[k].(string)
	return s
}

func (r Result) obj(k string) map[string]any {
	switch v := r[k].(type) {
	case map[string]any:
		return v
	case Result:
		return v
	}
	return nil
}

type resultKey struct{}
type originKey struct{}

// WithResult attaches an external result to ctx.
func WithResult(ctx context.Context, res Result) context.Context {
	return context.WithValue(ctx, resultKey{}, res)
}

// ResultFrom returns the external result of the current request, if any.
func ResultFrom(ctx context.Context) (Result, bool) {
	res, ok := ctx.Value(resultKey{}).(Result)
	return res, ok && res != nil
}

func WithOrigin(ctx context.Context, origin string) context.Context {
	return context.WithValue(ctx, originKey{}, origin)
}

// OriginFrom returns the origin captured during the request phase.
func OriginFrom(ctx context.Context) (string, bool) {
	o, ok := ctx.Value(originKey{}).(string)
	return o, ok && o != ""
}
