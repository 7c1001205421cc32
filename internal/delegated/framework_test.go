package delegated

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/dropDatabas3/socialgate/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	name string
	res  Result
	err  error
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) RequestPhase(w http.ResponseWriter, r *http.Request) error {
	http.Redirect(w, r, "https://provider.example/authorize", http.StatusFound)
	return nil
}

func (s *stubProvider) CallbackPhase(context.Context, *http.Request) (Result, error) {
	return s.res, s.err
}

func stubFactory(p *stubProvider) ProviderFactory {
	return func(ProviderConfig) (Provider, error) { return p, nil }
}

// captured registra lo que el siguiente handler vio.
type captured struct {
	called bool
	result Result
	origin string
}

func (c *captured) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.called = true
		c.result, _ = ResultFrom(r.Context())
		c.origin, _ = OriginFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func do(h http.Handler, sess *session.Session, r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r.WithContext(session.WithSession(r.Context(), sess)))
	return rec
}

func TestFramework_PassThrough(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterFactory("stub", stubFactory(&stubProvider{name: "stub"}), nil)
	var c captured
	h := New(reg).Middleware(c.handler())

	for _, p := range []string{"/", "/auth", "/auth/", "/auth/other", "/auth/stub/callback/extra", "/auth/failure"} {
		c = captured{}
		rec := do(h, session.New("s"), httptest.NewRequest(http.MethodGet, p, nil))
		assert.Equal(t, http.StatusOK, rec.Code, p)
		assert.True(t, c.called, p)
		assert.Nil(t, c.result, p)
	}
}

func TestFramework_RequestPhaseStoresOrigin(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterFactory("stub", stubFactory(&stubProvider{name: "stub"}), nil)
	var c captured
	h := New(reg).Middleware(c.handler())
	sess := session.New("s")

	rec := do(h, sess, httptest.NewRequest(http.MethodGet, "/auth/stub?origin=%2Fme", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.False(t, c.called)
	origin, ok := sess.Get(OriginKey)
	require.True(t, ok)
	assert.Equal(t, "/me", origin)
}

func TestFramework_RequestPhaseRejectsForeignOrigin(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterFactory("stub", stubFactory(&stubProvider{name: "stub"}), nil)
	h := New(reg).Middleware(http.NotFoundHandler())
	sess := session.New("s")

	do(h, sess, httptest.NewRequest(http.MethodGet, "/auth/stub?origin=https%3A%2F%2Fevil.example%2F", nil))
	_, ok := sess.Get(OriginKey)
	assert.False(t, ok)

	r := httptest.NewRequest(http.MethodGet, "/auth/stub", nil)
	r.Header.Set("Referer", "https://evil.example/x")
	do(h, sess, r)
	_, ok = sess.Get(OriginKey)
	assert.False(t, ok)
}

func TestFramework_RequestPhaseUsesSameHostReferer(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterFactory("stub", stubFactory(&stubProvider{name: "stub"}), nil)
	h := New(reg).Middleware(http.NotFoundHandler())
	sess := session.New("s")

	r := httptest.NewRequest(http.MethodGet, "http://example.com/auth/stub", nil)
	r.Header.Set("Referer", "http://example.com/settings?tab=1")
	do(h, sess, r)
	origin, _ := sess.Get(OriginKey)
	assert.Equal(t, "/settings?tab=1", origin)
}

func TestFramework_CallbackPopulatesResult(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterFactory("stub", stubFactory(&stubProvider{name: "stub", res: Result{"uid": "u1"}}), nil)
	var c captured
	h := New(reg).Middleware(c.handler())
	sess := session.New("s")
	sess.Set(OriginKey, "/me")

	rec := do(h, sess, httptest.NewRequest(http.MethodGet, "/AUTH/Stub/Callback", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.True(t, c.called)
	assert.Equal(t, "u1", c.result.UID())
	assert.Equal(t, "stub", c.result.Provider())
	assert.Equal(t, "/me", c.origin)
	_, ok := sess.Get(OriginKey)
	assert.False(t, ok)
}

func TestFramework_CallbackWithoutResultPassesThrough(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterFactory("nilp", stubFactory(&stubProvider{name: "nilp"}), nil)
	var c captured
	h := New(reg).Middleware(c.handler())
	sess := session.New("s")
	sess.Set(OriginKey, "/me")

	var rec *httptest.ResponseRecorder
	require.NotPanics(t, func() {
		rec = do(h, sess, httptest.NewRequest(http.MethodGet, "/auth/nilp/callback", nil))
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	require.True(t, c.called)
	assert.Nil(t, c.result)
	assert.Empty(t, c.origin)
	// el origin sigue guardado para el próximo intento
	origin, ok := sess.Get(OriginKey)
	assert.True(t, ok)
	assert.Equal(t, "/me", origin)
}

func TestFramework_CallbackFailureRedirects(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterFactory("stub", stubFactory(&stubProvider{name: "stub", err: Fail("access_denied", nil)}), nil)
	var c captured
	h := New(reg, WithPathPrefix("/sso/")).Middleware(c.handler())
	sess := session.New("s")
	sess.Set(OriginKey, "/me")

	rec := do(h, sess, httptest.NewRequest(http.MethodGet, "/sso/stub/callback", nil))
	require.Equal(t, http.StatusFound, rec.Code)
	assert.False(t, c.called)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/sso/failure", loc.Path)
	assert.Equal(t, "access_denied", loc.Query().Get("message"))
	assert.Equal(t, "stub", loc.Query().Get("strategy"))
	assert.Equal(t, "/me", loc.Query().Get("origin"))
}

func TestFramework_PlainErrorIsUnknownError(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterFactory("stub", stubFactory(&stubProvider{name: "stub", err: errors.New("timeout")}), nil)
	h := New(reg).Middleware(http.NotFoundHandler())

	rec := do(h, session.New("s"), httptest.NewRequest(http.MethodGet, "/auth/stub/callback", nil))
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "message="+KindUnknownError)
}

func TestRegistry_FactoryErrorAndCaching(t *testing.T) {
	reg := NewRegistry()
	calls := 0
	reg.RegisterFactory("a", func(cfg ProviderConfig) (Provider, error) {
		calls++
		assert.Equal(t, "a", cfg.Name)
		assert.Equal(t, "v", cfg.Options["k"])
		return &stubProvider{name: "a"}, nil
	}, map[string]string{"k": "v"})
	reg.RegisterFactory("broken", func(ProviderConfig) (Provider, error) { return nil, errors.New("no") }, nil)

	_, err := reg.provider("a", ProviderConfig{})
	require.NoError(t, err)
	_, err = reg.provider("a", ProviderConfig{})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	_, err = reg.provider("broken", ProviderConfig{})
	assert.Error(t, err)
	_, err = reg.provider("missing", ProviderConfig{})
	assert.ErrorIs(t, err, ErrProviderNotRegistered)

	assert.Equal(t, []string{"a", "broken"}, reg.Names())
}

func TestDeveloper_FormAndCallback(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterFactory(DeveloperName, DeveloperFactory, nil)
	var c captured
	h := New(reg).Middleware(c.handler())

	rec := do(h, session.New("s"), httptest.NewRequest(http.MethodGet, "/auth/developer", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `action="/auth/developer/callback"`)

	form := url.Values{"name": {"Ada"}, "email": {"ada@example.com"}}
	r := httptest.NewRequest(http.MethodPost, "/auth/developer/callback", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	do(h, session.New("s"), r)
	require.True(t, c.called)
	assert.Equal(t, "developer", c.result.Provider())
	assert.Equal(t, "ada@example.com", c.result.UID())
	assert.Equal(t, "Ada", c.result.Info()["name"])
	assert.NotNil(t, c.result.Credentials())
}

func TestDeveloper_MissingNameFails(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterFactory(DeveloperName, DeveloperFactory, nil)
	h := New(reg).Middleware(http.NotFoundHandler())

	r := httptest.NewRequest(http.MethodPost, "/auth/developer/callback", strings.NewReader("email=x%40y"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := do(h, session.New("s"), r)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "message="+KindInvalidCredentials)
}

func TestDeveloper_Options(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterFactory(DeveloperName, DeveloperFactory, map[string]string{
		DeveloperOptFields:   "name, nickname",
		DeveloperOptUIDField: "nickname",
	})
	var c captured
	h := New(reg).Middleware(c.handler())

	rec := do(h, session.New("s"), httptest.NewRequest(http.MethodGet, "/auth/developer", nil))
	assert.Contains(t, rec.Body.String(), `name="nickname"`)
	assert.NotContains(t, rec.Body.String(), `name="email"`)

	form := url.Values{"name": {"Ada"}, "nickname": {"ada"}, "email": {"ignored@example.com"}}
	r := httptest.NewRequest(http.MethodPost, "/auth/developer/callback", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	do(h, session.New("s"), r)
	require.True(t, c.called)
	assert.Equal(t, "ada", c.result.UID())
	assert.Equal(t, map[string]any{"name": "Ada", "nickname": "ada"}, c.result.Info())
}

func TestDeveloperFactory_RejectsBadOptions(t *testing.T) {
	_, err := DeveloperFactory(ProviderConfig{Options: map[string]string{DeveloperOptUIDField: "login"}})
	assert.ErrorContains(t, err, "uid_field")

	_, err = DeveloperFactory(ProviderConfig{Options: map[string]string{DeveloperOptFields: " , "}})
	assert.Error(t, err)
}

func TestIsLocalPath(t *testing.T) {
	assert.True(t, IsLocalPath("/"))
	assert.True(t, IsLocalPath("/me?x=1"))
	assert.False(t, IsLocalPath(""))
	assert.False(t, IsLocalPath("me"))
	assert.False(t, IsLocalPath("//evil.example"))
	assert.False(t, IsLocalPath("/\\evil.example"))
	assert.False(t, IsLocalPath("https://evil.example/"))
}
