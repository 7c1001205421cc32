package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dropDatabas3/socialgate/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	codec, err := NewCodec([]byte("test-secret-test-secret-test-secret"), time.Hour)
	require.NoError(t, err)
	return NewStore(cache.NewMemory(cache.Config{}), codec, Options{CookieName: "sg"})
}

func TestCodec_RoundTrip(t *testing.T) {
	codec, err := NewCodec([]byte("secret"), time.Hour)
	require.NoError(t, err)

	tok, err := codec.Encode("abc")
	require.NoError(t, err)
	id, err := codec.Decode(tok)
	require.NoError(t, err)
	assert.Equal(t, "abc", id)
}

func TestCodec_RejectsForeignKeyAndExpired(t *testing.T) {
	a, err := NewCodec([]byte("secret-a"), time.Hour)
	require.NoError(t, err)
	b, err := NewCodec([]byte("secret-b"), time.Hour)
	require.NoError(t, err)

	tok, err := a.Encode("abc")
	require.NoError(t, err)
	_, err = b.Decode(tok)
	assert.ErrorIs(t, err, ErrInvalidCookie)

	a.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, err := a.Encode("abc")
	require.NoError(t, err)
	a.now = time.Now
	_, err = a.Decode(old)
	assert.ErrorIs(t, err, ErrInvalidCookie)

	_, err = a.Decode("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidCookie)
}

func TestDeriveKey_EmptySecret(t *testing.T) {
	_, err := DeriveKey(nil)
	assert.Error(t, err)
}

func TestSession_DirtyTracking(t *testing.T) {
	s := New("id")
	_, dirty, _, _ := s.snapshot()
	assert.False(t, dirty)

	s.Set("k", "v")
	v, ok := s.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	s.markClean()
	s.Set("k", "v") // mismo valor: no ensucia
	_, dirty, _, _ = s.snapshot()
	assert.False(t, dirty)

	s.Delete("missing")
	_, dirty, _, _ = s.snapshot()
	assert.False(t, dirty)
}

func TestStore_SaveAndLoad(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	s, err := st.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.True(t, s.IsNew())

	s.Set("scope", "user")
	issue, err := st.Save(ctx, s)
	require.NoError(t, err)
	assert.True(t, issue)

	c, err := st.Cookie(s)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(c)
	loaded, err := st.Load(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, s.ID(), loaded.ID())
	assert.False(t, loaded.IsNew())
	v, ok := loaded.Get("scope")
	assert.True(t, ok)
	assert.Equal(t, "user", v)
}

func TestStore_ForgedCookieStartsFresh(t *testing.T) {
	st := newTestStore(t)
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "sg", Value: "forged"})

	s, err := st.Load(context.Background(), r)
	require.NoError(t, err)
	assert.True(t, s.IsNew())
	assert.Empty(t, s.Values())
}

func TestMiddleware_IssuesCookieOnlyWhenWritten(t *testing.T) {
	st := newTestStore(t)

	readOnly := st.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NotNil(t, FromContext(r.Context()))
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	readOnly.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Empty(t, rec.Result().Cookies())

	writer := st.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).Set("k", "v")
		http.Redirect(w, r, "/next", http.StatusFound)
	}))
	rec = httptest.NewRecorder()
	writer.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusFound, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "sg", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	// El siguiente request ve el valor guardado.
	var seen string
	reader := st.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context()).Get("k")
	}))
	r := httptest.NewRequest(http.MethodGet, "/next", nil)
	r.AddCookie(cookies[0])
	reader.ServeHTTP(httptest.NewRecorder(), r)
	assert.Equal(t, "v", seen)
}

func TestMiddleware_DestroyExpiresCookie(t *testing.T) {
	st := newTestStore(t)
	s := New("gone")
	s.Set("k", "v")
	_, err := st.Save(context.Background(), s)
	require.NoError(t, err)
	c, err := st.Cookie(s)
	require.NoError(t, err)

	h := st.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).Destroy()
		w.WriteHeader(http.StatusNoContent)
	}))
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(c)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)

	_, err = st.cache.Get(context.Background(), cacheKey("gone"))
	assert.ErrorIs(t, err, cache.ErrNotFound)
}
