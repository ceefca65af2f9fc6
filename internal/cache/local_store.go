package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
)

// LocalConfig sizes the in-process store.
type LocalConfig struct {
	NumCounters int64 `mapstructure:"num_counters"`
	MaxCost     int64 `mapstructure:"max_cost"`
	BufferItems int64 `mapstructure:"buffer_items"`
}

// DefaultLocalConfig returns a store sized for about 100k entries within 64MiB.
func DefaultLocalConfig() LocalConfig {
	return LocalConfig{NumCounters: 1_000_000, MaxCost: 64 << 20, BufferItems: 64}
}

// LocalStore implements Store on an in-process ristretto cache.
// Entries are not shared between instances.
type LocalStore struct {
	c *ristretto.Cache
}

var _ Store = (*LocalStore)(nil)

// NewLocalStore creates an in-process store.
func NewLocalStore(cfg LocalConfig) (*LocalStore, error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, errors.New("local cache: invalid config")
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
	})
	if err != nil {
		return nil, fmt.Errorf("local cache: %w", err)
	}
	return &LocalStore{c: c}, nil
}

func (s *LocalStore) Get(_ context.Context, key string) (string, error) {
	v, ok := s.c.Get(key)
	if !ok {
		return "", ErrCacheMiss
	}
	str, ok := v.(string)
	if !ok {
		s.c.Del(key)
		return "", ErrCacheMiss
	}
	return str, nil
}

// Set stores the value and waits until it is visible to readers.
func (s *LocalStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if !s.c.SetWithTTL(key, value, int64(len(value)), ttl) {
		return fmt.Errorf("%w: set %s dropped", ErrStoreUnavailable, key)
	}
	s.c.Wait()
	return nil
}

func (s *LocalStore) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		s.c.Del(k)
	}
	return nil
}

func (s *LocalStore) Exists(_ context.Context, keys ...string) (bool, error) {
	for _, k := range keys {
		if _, ok := s.c.Get(k); !ok {
			return false, nil
		}
	}
	return true, nil
}

// Clear drops every entry. The local store holds nothing but this service's keys.
func (s *LocalStore) Clear(_ context.Context) error {
	s.c.Clear()
	return nil
}

func (s *LocalStore) Close() error {
	s.c.Wait()
	s.c.Close()
	return nil
}
