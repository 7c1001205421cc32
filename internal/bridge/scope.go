package bridge

import (
	"errors"

	"github.com/dropDatabas3/socialgate/internal/session"
)

const (
	// ScopeKey is the session key holding the authn scope across the redirect round trip.
	ScopeKey = "socialgate.scope"
	// MaxScopeLength bounds the stored scope. Longer values mean a corrupt session.
	MaxScopeLength = 100
)

var ErrBadSessionScope = errors.New("bridge: session scope exceeds length bound")

// ScopeStore reads and writes the scope value in a session.
type ScopeStore struct {
	Key string
	Max int
}

func NewScopeStore() ScopeStore {
	return ScopeStore{Key: ScopeKey, Max: MaxScopeLength}
}

func (s ScopeStore) key() string {
	if s.Key == "" {
		return ScopeKey
	}
	return s.Key
}

func (s ScopeStore) max() int {
	if s.Max <= 0 {
		return MaxScopeLength
	}
	return s.Max
}

// Get returns the stored scope. An oversized value is reported as
// ErrBadSessionScope and left in place.
func (s ScopeStore) Get(sess *session.Session) (string, bool, error) {
	v, ok := sess.Get(s.key())
	if !ok {
		return "", false, nil
	}
	if len(v) > s.max() {
		return "", true, ErrBadSessionScope
	}
	return v, true, nil
}

func (s ScopeStore) Set(sess *session.Session, scope string) error {
	if len(scope) > s.max() {
		return ErrBadSessionScope
	}
	sess.Set(s.key(), scope)
	return nil
}
