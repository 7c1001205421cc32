// Package cache provee el almacenamiento clave/valor donde viven las sesiones.
//
// Soporta:
//   - Memory (in-process, go-cache; desarrollo y single-node)
//   - Redis (distribuido, para producción con varias réplicas)
package cache

import (
	"context"
	"errors"
	"time"
)

// Client define las operaciones de cache que usa el session store.
type Client interface {
	// Get obtiene un valor. Retorna ErrNotFound si no existe o expiró.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set guarda un valor. Si ttl es 0 se usa el TTL por defecto del backend.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete elimina una key. No es error si no existe.
	Delete(ctx context.Context, key string) error

	// Ping verifica la conexión.
	Ping(ctx context.Context) error

	// Close libera recursos.
	Close() error
}

// Config configuración para crear un cliente de cache.
type Config struct {
	Driver          string // "memory" | "redis"
	Addr            string
	Password        string
	DB              int
	Prefix          string // Prefijo para todas las keys
	DefaultTTL      time.Duration
	CleanupInterval time.Duration
}

// ErrNotFound indica que la key no existe.
var ErrNotFound = errors.New("cache: key not found")

// New crea un cliente de cache según la configuración.
func New(ctx context.Context, cfg Config) (Client, error) {
	switch cfg.Driver {
	case "redis":
		return NewRedis(ctx, cfg)
	default:
		return NewMemory(cfg), nil
	}
}

func prefixed(prefix, k string) string {
	if prefix == "" {
		return k
	}
	return prefix + ":" + k
}
