package bridge

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/dropDatabas3/socialgate/internal/authn"
)

// StrategyPrefix namespaces bridge strategies inside authn.
const StrategyPrefix = "omni_"

// DefaultPathPrefix matches delegated.DefaultPathPrefix.
const DefaultPathPrefix = "/auth"

var (
	ErrUnknownProvider   = errors.New("bridge: unknown provider")
	ErrInvalidProviderID = errors.New("bridge: invalid provider id")
)

// StrategyName devuelve el nombre authn de la estrategia de un provider.
func StrategyName(providerID string) string { return StrategyPrefix + providerID }

// Descriptor es la configuración por provider. Su id no cambia; el transform
// se resuelve en cada llamada.
type Descriptor struct {
	id       string
	reg      *Registry
	override Transform // guarded by reg.mu
}

func (d *Descriptor) ProviderID() string { return d.id }

func (d *Descriptor) StrategyName() string { return StrategyName(d.id) }

// Transform devuelve el override del provider o el default actual del registry.
func (d *Descriptor) Transform() Transform {
	d.reg.mu.RLock()
	defer d.reg.mu.RUnlock()
	if d.override != nil {
		return d.override
	}
	return d.reg.def
}

// Overridden reporta si el provider tiene transform propio.
func (d *Descriptor) Overridden() bool {
	d.reg.mu.RLock()
	defer d.reg.mu.RUnlock()
	return d.override != nil
}

// Registry mapea provider id -> Descriptor y registra las estrategias en authn.
// Los descriptores nunca se borran.
type Registry struct {
	mu         sync.RWMutex
	byID       map[string]*Descriptor
	def        Transform
	strategies *authn.Strategies

	prefix     string
	originHint bool
	scopes     ScopeStore
}

type RegistryOption func(*Registry)

// WithPathPrefix sets the mount point shared with the delegated framework.
func WithPathPrefix(prefix string) RegistryOption {
	return func(r *Registry) {
		if p := strings.Trim(prefix, "/"); p != "" {
			r.prefix = "/" + p
		}
	}
}

// WithOriginHint controls whether redirects carry ?origin=<request uri>.
func WithOriginHint(on bool) RegistryOption {
	return func(r *Registry) { r.originHint = on }
}

func WithDefaultTransform(fn Transform) RegistryOption {
	return func(r *Registry) {
		if fn != nil {
			r.def = fn
		}
	}
}

// WithScopeStore replaces the session scope accessor.
func WithScopeStore(s ScopeStore) RegistryOption {
	return func(r *Registry) { r.scopes = s }
}

func NewRegistry(strategies *authn.Strategies, opts ...RegistryOption) *Registry {
	if strategies == nil {
		strategies = authn.NewStrategies()
	}
	r := &Registry{
		byID:       map[string]*Descriptor{},
		def:        DefaultTransform,
		strategies: strategies,
		prefix:     DefaultPathPrefix,
		originHint: true,
		scopes:     NewScopeStore(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Registry) PathPrefix() string { return r.prefix }

func (r *Registry) Scopes() ScopeStore { return r.scopes }

func (r *Registry) Strategies() *authn.Strategies { return r.strategies }

// RequestPath es la ruta de inicio del flujo externo del provider.
func (r *Registry) RequestPath(providerID string) string { return path.Join(r.prefix, providerID) }

func validID(id string) bool {
	return id != "" && !strings.ContainsAny(id, "/?#")
}

// Register es idempotente: un id conocido devuelve el mismo *Descriptor.
func (r *Registry) Register(providerID string) (*Descriptor, error) {
	if !validID(providerID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidProviderID, providerID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.byID[providerID]; ok {
		return d, nil
	}
	d := &Descriptor{id: providerID, reg: r}
	r.byID[providerID] = d
	r.strategies.Add(d.StrategyName(), &Strategy{desc: d})
	return d, nil
}

// RegisterAll registra cada id; se detiene en el primero inválido.
func (r *Registry) RegisterAll(providerIDs ...string) error {
	for _, id := range providerIDs {
		if _, err := r.Register(id); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) Lookup(providerID string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byID[providerID]
	return d, ok
}

// resolve busca por id sin distinguir mayúsculas; la coincidencia exacta gana.
// Entre ids que solo difieren en mayúsculas gana el primero en orden (sort.Strings).
func (r *Registry) resolve(segment string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if d, ok := r.byID[segment]; ok {
		return d, true
	}
	for _, id := range r.sortedIDs() {
		if strings.EqualFold(id, segment) {
			return r.byID[id], true
		}
	}
	return nil, false
}

// Known reporta si segment resuelve a un provider registrado.
func (r *Registry) Known(segment string) bool {
	_, ok := r.resolve(segment)
	return ok
}

// SetTransform instala un override para el provider. nil equivale a ResetTransform.
func (r *Registry) SetTransform(providerID string, fn Transform) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.byID[providerID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProvider, providerID)
	}
	d.override = fn
	return nil
}

// ResetTransform vuelve el provider al default vigente.
func (r *Registry) ResetTransform(providerID string) error {
	return r.SetTransform(providerID, nil)
}

// SetDefaultTransform cambia el default para todos los providers sin override.
// nil restaura DefaultTransform.
func (r *Registry) SetDefaultTransform(fn Transform) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if fn == nil {
		fn = DefaultTransform
	}
	r.def = fn
}

func (r *Registry) DefaultTransform() Transform {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.def
}

// Providers devuelve los ids registrados, ordenados.
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedIDs()
}

// sortedIDs requiere r.mu tomado.
func (r *Registry) sortedIDs() []string {
	ids := make([]string, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
