package bridge

import (
	"errors"
	"sync"
	"testing"

	"github.com/dropDatabas3/socialgate/internal/authn"
	"github.com/dropDatabas3/socialgate/internal/delegated"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constTransform(v any) Transform {
	return func(delegated.Result, string) (any, error) { return v, nil }
}

func apply(t *testing.T, d *Descriptor) any {
	t.Helper()
	v, err := d.Transform()(delegated.Result{"uid": "1"}, d.ProviderID())
	require.NoError(t, err)
	return v
}

func TestRegistry_RegisterIsIdempotent(t *testing.T) {
	strategies := authn.NewStrategies()
	reg := NewRegistry(strategies)

	a, err := reg.Register("facebook")
	require.NoError(t, err)
	require.NoError(t, reg.SetTransform("facebook", constTransform("fb")))

	b, err := reg.Register("facebook")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.True(t, b.Overridden(), "re-registering must not reset the override")

	assert.True(t, strategies.Has("omni_facebook"))
	assert.Equal(t, "omni_facebook", a.StrategyName())

	got, ok := reg.Lookup("facebook")
	require.True(t, ok)
	assert.Same(t, a, got)
	_, ok = reg.Lookup("twitter")
	assert.False(t, ok)
}

func TestRegistry_InvalidIDs(t *testing.T) {
	reg := NewRegistry(nil)
	for _, id := range []string{"", "a/b", "x?y"} {
		_, err := reg.Register(id)
		assert.ErrorIs(t, err, ErrInvalidProviderID, id)
	}
	assert.ErrorIs(t, reg.RegisterAll("ok", ""), ErrInvalidProviderID)
	assert.Equal(t, []string{"ok"}, reg.Providers())
}

func TestRegistry_DefaultIsLiveFallback(t *testing.T) {
	reg := NewRegistry(nil)
	d, err := reg.Register("github")
	require.NoError(t, err)

	v := apply(t, d)
	assert.Equal(t, map[string]any{"info": nil, "uid": "1", "credentials": nil, "provider": "github"}, v)

	reg.SetDefaultTransform(constTransform("global"))
	assert.Equal(t, "global", apply(t, d), "registration must not snapshot the default")

	reg.SetDefaultTransform(nil)
	assert.Equal(t, "1", apply(t, d).(map[string]any)["uid"])
}

func TestRegistry_OverrideIsolationAndReset(t *testing.T) {
	reg := NewRegistry(nil)
	require.NoError(t, reg.RegisterAll("twitter", "facebook"))
	fb, _ := reg.Lookup("facebook")
	tw, _ := reg.Lookup("twitter")

	require.NoError(t, reg.SetTransform("facebook", constTransform("fb")))
	reg.SetDefaultTransform(constTransform("default"))

	assert.Equal(t, "fb", apply(t, fb))
	assert.Equal(t, "default", apply(t, tw))

	require.NoError(t, reg.ResetTransform("facebook"))
	assert.False(t, fb.Overridden())
	assert.Equal(t, "default", apply(t, fb))
}

func TestRegistry_UnknownProvider(t *testing.T) {
	reg := NewRegistry(nil)
	assert.ErrorIs(t, reg.SetTransform("nope", constTransform(1)), ErrUnknownProvider)
	assert.ErrorIs(t, reg.ResetTransform("nope"), ErrUnknownProvider)
}

func TestRegistry_ProvidersSorted(t *testing.T) {
	reg := NewRegistry(nil)
	require.NoError(t, reg.RegisterAll("twitter", "developer", "facebook", "developer"))
	assert.Equal(t, []string{"developer", "facebook", "twitter"}, reg.Providers())
}

func TestRegistry_ResolveCaseFoldedIDsIsDeterministic(t *testing.T) {
	reg := NewRegistry(nil)
	require.NoError(t, reg.RegisterAll("facebook", "Facebook"))

	for i := 0; i < 50; i++ {
		d, ok := reg.resolve("FACEBOOK")
		require.True(t, ok)
		require.Equal(t, "Facebook", d.ProviderID())
	}
	d, ok := reg.resolve("facebook")
	require.True(t, ok)
	assert.Equal(t, "facebook", d.ProviderID(), "exact match wins")

	assert.True(t, reg.Known("fAcEbOoK"))
	assert.False(t, reg.Known("twitter"))
}

func TestRegistry_ConcurrentMutation(t *testing.T) {
	reg := NewRegistry(nil)
	d, err := reg.Register("p")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if j%2 == 0 {
					_ = reg.SetTransform("p", constTransform(i))
				} else {
					_ = reg.ResetTransform("p")
				}
				_, _ = reg.Register("p")
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, _ = d.Transform()(delegated.Result{"uid": "x"}, "p")
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, []string{"p"}, reg.Providers())
}

func TestDefaultTransform(t *testing.T) {
	res := delegated.Result{
		"provider":    "facebook",
		"uid":         "42",
		"info":        map[string]any{"name": "Ada"},
		"credentials": map[string]any{"token": "t"},
		"extra":       map[string]any{"raw": true},
	}
	v, err := DefaultTransform(res, "ignored")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"provider":    "facebook",
		"uid":         "42",
		"info":        map[string]any{"name": "Ada"},
		"credentials": map[string]any{"token": "t"},
	}, v)

	v, err = DefaultTransform(delegated.Result{}, "x")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"provider":    "x",
		"uid":         nil,
		"info":        nil,
		"credentials": nil,
	}, v)
}

func TestTransformError_Unwrap(t *testing.T) {
	cause := errors.New("missing uid")
	var err error = &TransformError{Provider: "fb", Err: cause}
	assert.ErrorIs(t, err, cause)
	var te *TransformError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "fb", te.Provider)
}
