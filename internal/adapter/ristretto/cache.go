// Package ristretto implements the cache port using dgraph-io/ristretto
// as an in-process read cache for the HTTP layer.
package ristretto

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/Strob0t/AgentForge/internal/config"
)

// Cache wraps a ristretto cache keyed by agent ID or listing name.
type Cache struct {
	c   *ristretto.Cache[string, []byte]
	ttl time.Duration
}

// New creates a ristretto-backed cache sized from configuration.
func New(cfg config.Cache) (*Cache, error) {
	maxCost := int64(cfg.MaxSizeMB) * 1024 * 1024
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: maxCost / 100 * 10, // ~10x expected items
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{c: c, ttl: cfg.TTL}, nil
}

// TTL returns the configured default entry lifetime.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Get retrieves a value from the cache.
func (c *Cache) Get(_ context.Context, key string) (data []byte, ok bool, err error) {
	val, found := c.c.Get(key)
	if !found {
		return nil, false, nil
	}
	return val, true, nil
}

// Set stores a value in the cache with the given TTL.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.c.SetWithTTL(key, value, int64(len(value)), ttl)
	return nil
}

// Delete removes a value from the cache.
func (c *Cache) Delete(_ context.Context, key string) error {
	c.c.Del(key)
	return nil
}

// Wait blocks until buffered writes have been applied.
func (c *Cache) Wait() {
	c.c.Wait()
}

// Close shuts down the cache and releases resources.
func (c *Cache) Close() {
	c.c.Close()
}
