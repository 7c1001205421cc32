package authn

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/dropDatabas3/socialgate/internal/session"
)

// UserKeyPrefix prefija la clave de sesión donde se guarda el usuario de cada scope.
const UserKeyPrefix = "authn.user."

func userKey(scope string) string { return UserKeyPrefix + scope }

// Proxy es la vista por request del Manager.
type Proxy struct {
	m    *Manager
	req  *http.Request
	sess *session.Session

	mu      sync.Mutex
	errors  *Errors
	users   map[string]any
	result  Result
	winner  string
	aborted bool
	err     error
}

type authOptions struct {
	scope      string
	strategies []string
}

// Option modifica una llamada a Authenticate.
type Option func(*authOptions)

func WithScope(scope string) Option {
	return func(o *authOptions) { o.scope = scope }
}

// WithStrategies reemplaza las estrategias por defecto del Manager.
func WithStrategies(names ...string) Option {
	return func(o *authOptions) { o.strategies = names }
}

// Authenticate corre las estrategias en orden hasta que una decide.
// Si el scope ya tiene usuario en la sesión devuelve true sin correr nada.
// Un Success guarda el usuario; Redirect y Fail quedan en Result para que
// el handler decida si aborta.
func (p *Proxy) Authenticate(ctx context.Context, opts ...Option) (bool, error) {
	o := authOptions{scope: p.m.cfg.DefaultScope, strategies: p.m.cfg.DefaultStrategies}
	for _, opt := range opts {
		opt(&o)
	}
	if o.scope == "" {
		o.scope = p.m.cfg.DefaultScope
	}

	user, err := p.User(o.scope)
	if err != nil {
		return false, err
	}
	if user != nil {
		return true, nil
	}

	for _, name := range o.strategies {
		st, ok := p.m.cfg.Strategies.Get(name)
		if !ok {
			return false, fmt.Errorf("%w: %s", ErrUnknownStrategy, name)
		}
		res, err := st.Authenticate(ctx, &Attempt{Request: p.req, Session: p.sess, Scope: o.scope})
		if err != nil {
			return false, err
		}
		if res.Outcome == OutcomeNone {
			continue
		}

		p.mu.Lock()
		p.result, p.winner = res, name
		p.mu.Unlock()

		if res.Outcome == OutcomeSuccess {
			if err := p.SetUser(o.scope, res.User); err != nil {
				return false, err
			}
			return true, nil
		}
		return false, nil
	}
	return false, nil
}

// AuthenticateOrAbort es Authenticate seguido de Abort cuando no hubo usuario.
func (p *Proxy) AuthenticateOrAbort(ctx context.Context, opts ...Option) (bool, error) {
	ok, err := p.Authenticate(ctx, opts...)
	if err == nil && !ok {
		p.Abort()
	}
	return ok, err
}

// User devuelve el usuario guardado para scope, o nil.
func (p *Proxy) User(scope string) (any, error) {
	p.mu.Lock()
	if u, ok := p.users[scope]; ok {
		p.mu.Unlock()
		return u, nil
	}
	p.mu.Unlock()

	raw, ok := p.sess.Get(userKey(scope))
	if !ok {
		return nil, nil
	}
	u, err := p.m.cfg.Serializer.Deserialize(raw)
	if err != nil {
		return nil, fmt.Errorf("authn: deserialize user for scope %q: %w", scope, err)
	}
	p.mu.Lock()
	p.users[scope] = u
	p.mu.Unlock()
	return u, nil
}

func (p *Proxy) Authenticated(scope string) bool {
	u, err := p.User(scope)
	return err == nil && u != nil
}

func (p *Proxy) SetUser(scope string, user any) error {
	raw, err := p.m.cfg.Serializer.Serialize(user)
	if err != nil {
		return fmt.Errorf("authn: serialize user for scope %q: %w", scope, err)
	}
	p.sess.Set(userKey(scope), raw)
	p.mu.Lock()
	p.users[scope] = user
	p.mu.Unlock()
	return nil
}

// Logout borra el usuario de los scopes dados; sin scopes destruye la sesión.
func (p *Proxy) Logout(scopes ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(scopes) == 0 {
		p.users = map[string]any{}
		p.sess.Destroy()
		return
	}
	for _, s := range scopes {
		delete(p.users, s)
		p.sess.Delete(userKey(s))
	}
}

func (p *Proxy) Session() *session.Session { return p.sess }

func (p *Proxy) Errors() *Errors { return p.errors }

// Result devuelve la última decisión de una estrategia.
func (p *Proxy) Result() Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.result
}

// Winner es el nombre de la estrategia que produjo Result.
func (p *Proxy) Winner() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.winner
}

// SetResult registra una decisión tomada fuera de una estrategia.
func (p *Proxy) SetResult(res Result) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.result = res
}

// Abort pide al Manager que resuelva la respuesta cuando el handler retorne.
// El handler no debe escribir nada después de abortar.
func (p *Proxy) Abort() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.aborted = true
}

func (p *Proxy) Aborted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.aborted
}

// Raise entrega err al ErrorHandler del Manager. Gana sobre Abort.
func (p *Proxy) Raise(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err == nil {
		p.err = err
	}
}
