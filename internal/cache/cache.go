// Package cache abstrae el storage efímero del servicio: memory para
// dev/tests, redis para producción.
//
// Los authorization codes y los states de login viven acá. GetDel es la
// pieza clave: consumo atómico de un solo uso, gana a lo sumo un caller.
package cache

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("cache: key not found")

// IsNotFound dice si err es un miss de cache.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// Client son las operaciones que el resto del código puede asumir.
type Client interface {
	// Get devuelve el valor o ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// GetDel lee y borra en una sola operación atómica. Con callers
	// concurrentes, exactamente uno recibe el valor; el resto ErrNotFound.
	GetDel(ctx context.Context, key string) (string, error)

	// Set guarda con TTL. ttl 0 = sin expiración.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	Delete(ctx context.Context, key string) error

	Ping(ctx context.Context) error
	Close() error
}

// Config selecciona e inicializa el backend.
type Config struct {
	Driver   string // "memory" | "redis"
	Addr     string
	Password string
	DB       int
	Prefix   string // prefijo común de keys (namespacing en redis compartido)
}

// New arma el cliente según el driver. Driver desconocido o vacío cae a
// memory, que siempre funciona.
func New(cfg Config) (Client, error) {
	if cfg.Driver == "redis" {
		return NewRedis(cfg)
	}
	return NewMemory(cfg.Prefix), nil
}
