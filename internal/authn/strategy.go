package authn

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"sync"

	"github.com/dropDatabas3/socialgate/internal/session"
)

// Outcome is the halting decision a strategy makes.
type Outcome int

const (
	// OutcomeNone means the strategy does not apply; the next one is tried.
	OutcomeNone Outcome = iota
	OutcomeSuccess
	OutcomeRedirect
	OutcomeFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRedirect:
		return "redirect"
	case OutcomeFailure:
		return "failure"
	default:
		return "none"
	}
}

// Result is what a strategy returns from Authenticate.
type Result struct {
	Outcome  Outcome
	User     any
	Location string
	Params   url.Values
	Message  string
}

func Success(user any) Result { return Result{Outcome: OutcomeSuccess, User: user} }

func Redirect(location string, params url.Values) Result {
	return Result{Outcome: OutcomeRedirect, Location: location, Params: params}
}

func Fail(message string) Result { return Result{Outcome: OutcomeFailure, Message: message} }

// RedirectURL joins Location and Params.
func (r Result) RedirectURL() string {
	if len(r.Params) == 0 {
		return r.Location
	}
	return r.Location + "?" + r.Params.Encode()
}

// Attempt carries what a strategy may inspect for one authentication run.
type Attempt struct {
	Request *http.Request
	Session *session.Session
	Scope   string
}

// Strategy authenticates a request.
//
// A non-nil error is fatal for the attempt: it is not converted into a
// failure and propagates to the caller of Proxy.Authenticate.
type Strategy interface {
	Authenticate(ctx context.Context, a *Attempt) (Result, error)
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc func(ctx context.Context, a *Attempt) (Result, error)

func (f StrategyFunc) Authenticate(ctx context.Context, a *Attempt) (Result, error) {
	return f(ctx, a)
}

// Strategies is a concurrency-safe name -> Strategy table.
type Strategies struct {
	mu sync.RWMutex
	m  map[string]Strategy
}

func NewStrategies() *Strategies {
	return &Strategies{m: map[string]Strategy{}}
}

// Add registers st under name, replacing any previous entry.
func (s *Strategies) Add(name string, st Strategy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[name] = st
}

func (s *Strategies) Get(name string) (Strategy, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.m[name]
	return st, ok
}

func (s *Strategies) Has(name string) bool {
	_, ok := s.Get(name)
	return ok
}

// Names returns the registered names, sorted.
func (s *Strategies) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.m))
	for n := range s.m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
