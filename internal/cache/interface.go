package cache

import (
	"context"
	"errors"
	"time"
)

var (
	ErrCacheMiss         = errors.New("cache miss")
	ErrStoreUnavailable  = errors.New("cache store unavailable")
	ErrInvalidCacheValue = errors.New("invalid cache value")
	ErrEncode            = errors.New("cache encode failed")
)

// Store is a string key-value store with per-key TTL.
// Backend failures are wrapped with ErrStoreUnavailable.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// Exists reports true only when every key exists.
	Exists(ctx context.Context, keys ...string) (bool, error)
	// Clear drops this service's key namespaces.
	Clear(ctx context.Context) error
	Close() error
}
