package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dropDatabas3/socialgate/internal/cache"
	"github.com/dropDatabas3/socialgate/internal/observability/logger"
	"github.com/google/uuid"
)

// Options configures the session cookie.
type Options struct {
	CookieName string
	Path       string
	Domain     string
	TTL        time.Duration
	Secure     bool
	SameSite   http.SameSite
}

// Store loads and persists sessions.
type Store struct {
	cache cache.Client
	codec *Codec
	opts  Options
}

// NewStore builds a Store. Empty options fall back to "sid", "/" and 12h.
func NewStore(c cache.Client, codec *Codec, opts Options) *Store {
	if opts.CookieName == "" {
		opts.CookieName = "sid"
	}
	if opts.Path == "" {
		opts.Path = "/"
	}
	if opts.TTL <= 0 {
		opts.TTL = 12 * time.Hour
	}
	if opts.SameSite == 0 {
		opts.SameSite = http.SameSiteLaxMode
	}
	return &Store{cache: c, codec: codec, opts: opts}
}

func (st *Store) CookieName() string { return st.opts.CookieName }

func cacheKey(id string) string { return "session:" + id }

// Load returns the session referenced by the request cookie, or a new one
// when the cookie is missing, forged or points to an expired entry.
func (st *Store) Load(ctx context.Context, r *http.Request) (*Session, error) {
	c, err := r.Cookie(st.opts.CookieName)
	if err != nil || c.Value == "" {
		return st.fresh(), nil
	}
	id, err := st.codec.Decode(c.Value)
	if err != nil {
		logger.From(ctx).Debug("discarding session cookie", logger.Err(err))
		return st.fresh(), nil
	}
	raw, err := st.cache.Get(ctx, cacheKey(id))
	if errors.Is(err, cache.ErrNotFound) {
		return st.fresh(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: load %s: %w", id, err)
	}
	values := map[string]string{}
	if err := json.Unmarshal(raw, &values); err != nil {
		logger.From(ctx).Warn("corrupt session payload, starting over", logger.SessionID(id), logger.Err(err))
		return st.fresh(), nil
	}
	return &Session{id: id, values: values}, nil
}

func (st *Store) fresh() *Session { return New(uuid.NewString()) }

// Save persists the session if it changed. It reports whether a cookie must be
// (re)issued to the client.
func (st *Store) Save(ctx context.Context, s *Session) (issueCookie bool, err error) {
	values, dirty, destroyed, isNew := s.snapshot()
	if !dirty {
		return false, nil
	}
	if destroyed {
		if err := st.cache.Delete(ctx, cacheKey(s.ID())); err != nil {
			return false, fmt.Errorf("session: delete %s: %w", s.ID(), err)
		}
		s.markClean()
		return true, nil
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return false, fmt.Errorf("session: encode %s: %w", s.ID(), err)
	}
	if err := st.cache.Set(ctx, cacheKey(s.ID()), raw, st.opts.TTL); err != nil {
		return false, fmt.Errorf("session: save %s: %w", s.ID(), err)
	}
	s.markClean()
	return isNew, nil
}

// Cookie builds the cookie for s. Destroyed sessions get an expired cookie.
func (st *Store) Cookie(s *Session) (*http.Cookie, error) {
	c := &http.Cookie{
		Name:     st.opts.CookieName,
		Path:     st.opts.Path,
		Domain:   st.opts.Domain,
		Secure:   st.opts.Secure,
		HttpOnly: true,
		SameSite: st.opts.SameSite,
	}
	s.mu.RLock()
	destroyed := s.destroyed
	s.mu.RUnlock()
	if destroyed {
		c.MaxAge = -1
		return c, nil
	}
	v, err := st.codec.Encode(s.ID())
	if err != nil {
		return nil, err
	}
	c.Value = v
	c.MaxAge = int(st.opts.TTL.Seconds())
	return c, nil
}
