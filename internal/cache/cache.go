// Package cache stores resolved graph strings with an expiry.
//
// A Cache wraps a Backend (in-memory, a JSON file, or pebble) and adds TTL
// handling plus Remember, which collapses concurrent misses for the same
// key into a single load.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/bitsmind/graphsql/internal/metrics"
)

// Entry is a cached value. A zero ExpiresAt never expires.
type Entry struct {
	Value     []byte    `json:"value"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

// Expired reports whether the entry is past its expiry at now.
func (e Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// Backend is raw key/value storage for entries. Backends do not interpret
// ExpiresAt; the Cache does.
type Backend interface {
	// Name labels the backend in metrics and logs.
	Name() string
	Load(ctx context.Context, key string) (Entry, bool, error)
	Store(ctx context.Context, key string, e Entry) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces the wall clock, for tests.
func WithClock(c Clock) Option {
	return func(cc *Cache) { cc.clock = c }
}

// WithMetrics records hits and misses.
func WithMetrics(m *metrics.Metrics) Option {
	return func(cc *Cache) { cc.metrics = m }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(cc *Cache) { cc.logger = l }
}

// Cache adds expiry and load de-duplication on top of a Backend.
//
// Thread-safety: Cache is safe for concurrent use if its Backend is.
type Cache struct {
	backend Backend
	clock   Clock
	metrics *metrics.Metrics
	logger  *slog.Logger
	group   singleflight.Group
}

// New creates a cache over backend.
func New(backend Backend, opts ...Option) *Cache {
	c := &Cache{
		backend: backend,
		clock:   systemClock{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Backend returns the underlying backend.
func (c *Cache) Backend() Backend {
	return c.backend
}

// Get returns the live value for key. Expired entries are deleted and
// reported as missing.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	e, ok, err := c.backend.Load(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("cache load %q: %w", key, err)
	}
	if ok && e.Expired(c.clock.Now()) {
		if err := c.backend.Delete(ctx, key); err != nil {
			c.logger.Warn("failed to evict expired cache entry", "key", key, "error", err)
		}
		ok = false
	}
	if !ok {
		c.metrics.CacheMiss(c.backend.Name())
		return nil, false, nil
	}
	c.metrics.CacheHit(c.backend.Name())
	return e.Value, true, nil
}

// Set stores value under key for ttl. A ttl <= 0 stores without expiry.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	e := Entry{Value: value}
	if ttl > 0 {
		e.ExpiresAt = c.clock.Now().Add(ttl)
	}
	if err := c.backend.Store(ctx, key, e); err != nil {
		return fmt.Errorf("cache store %q: %w", key, err)
	}
	return nil
}

// Remember returns the cached value for key, calling load and storing its
// result on a miss. Concurrent misses for the same key share one load.
// Load errors are returned and nothing is stored.
func (c *Cache) Remember(ctx context.Context, key string, ttl time.Duration, load func(context.Context) ([]byte, error)) ([]byte, error) {
	if v, ok, err := c.Get(ctx, key); err != nil {
		return nil, err
	} else if ok {
		return v, nil
	}

	v, err, shared := c.group.Do(key, func() (any, error) {
		// check cache inside singleflight
		e, ok, err := c.backend.Load(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("cache load %q: %w", key, err)
		}
		if ok && !e.Expired(c.clock.Now()) {
			return e.Value, nil
		}

		value, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.Set(ctx, key, value, ttl); err != nil {
			return nil, err
		}
		c.logger.Debug("cache populated", "backend", c.backend.Name(), "key", key)
		return value, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.Debug("cache load shared", "key", key)
	}
	return v.([]byte), nil
}

// Forget removes key.
func (c *Cache) Forget(ctx context.Context, key string) error {
	if err := c.backend.Delete(ctx, key); err != nil {
		return fmt.Errorf("cache delete %q: %w", key, err)
	}
	return nil
}

// Flush removes every entry.
func (c *Cache) Flush(ctx context.Context) error {
	if err := c.backend.Clear(ctx); err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}
	c.logger.Info("cache flushed", "backend", c.backend.Name())
	return nil
}
