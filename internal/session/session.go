// Package session implements the per-request session the authentication layers write to.
//
// The cookie only carries a signed session id; values live server side in a
// cache.Client (memory or redis). Values are plain strings so that every
// reader sees exactly what the writer stored.
package session

import (
	"context"
	"sync"
)

// Session is a mutable, request-scoped bag of string values.
// It is safe for concurrent use within a request.
type Session struct {
	mu        sync.RWMutex
	id        string
	values    map[string]string
	isNew     bool
	dirty     bool
	destroyed bool
}

// New returns an empty session with the given id.
func New(id string) *Session {
	return &Session{id: id, values: map[string]string{}, isNew: true}
}

func (s *Session) ID() string { return s.id }

// IsNew reports whether the session was created during this request.
func (s *Session) IsNew() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isNew
}

func (s *Session) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *Session) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.values[key]; ok && cur == value {
		return
	}
	s.values[key] = value
	s.dirty = true
}

func (s *Session) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; !ok {
		return
	}
	delete(s.values, key)
	s.dirty = true
}

// Values returns a copy of the stored values.
func (s *Session) Values() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Destroy drops every value and marks the session for deletion on commit.
func (s *Session) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = map[string]string{}
	s.destroyed = true
	s.dirty = true
}

func (s *Session) snapshot() (values map[string]string, dirty, destroyed, isNew bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	values = make(map[string]string, len(s.values))
	for k, v := range s.values {
		values[k] = v
	}
	return values, s.dirty, s.destroyed, s.isNew
}

func (s *Session) markClean() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = false
	s.isNew = false
}

type ctxKey struct{}

// WithSession attaches s to ctx.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session attached to ctx, or nil.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(ctxKey{}).(*Session)
	return s
}
