package authn

import (
	"errors"
	"sync"
)

var (
	// ErrNoProxy means a handler needed the Proxy but Manager.Middleware did not run.
	ErrNoProxy = errors.New("authn: no proxy in request context")
	// ErrNoSession means Manager.Middleware ran without a session in the context.
	ErrNoSession = errors.New("authn: no session in request context")
	// ErrUnknownStrategy is returned by Authenticate for names that were never added.
	ErrUnknownStrategy = errors.New("authn: unknown strategy")
)

// Errors collects user-facing messages per field during a request.
type Errors struct {
	mu     sync.Mutex
	fields []string
	m      map[string][]string
}

func newErrors() *Errors { return &Errors{m: map[string][]string{}} }

func (e *Errors) Add(field, message string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.m[field]; !ok {
		e.fields = append(e.fields, field)
	}
	e.m[field] = append(e.m[field], message)
}

// On returns the messages added for field.
func (e *Errors) On(field string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.m[field]...)
}

func (e *Errors) Empty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.fields) == 0
}

// Messages returns every message in insertion order.
func (e *Errors) Messages() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []string
	for _, f := range e.fields {
		out = append(out, e.m[f]...)
	}
	return out
}
