// Package ristretto implements the cache port using dgraph-io/ristretto as L1 in-process cache.
package ristretto

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/Strob0t/ActionForge/internal/port/cache"
)

const bytesPerMB = 1 << 20

// Cache wraps a ristretto cache as an in-process L1 cache.
type Cache struct {
	c *ristretto.Cache[string, []byte]
}

var _ cache.Cache = (*Cache)(nil)

// New creates a ristretto-backed cache. maxCostBytes is the maximum total
// size of cached values in bytes.
func New(maxCostBytes int64) (*Cache, error) {
	if maxCostBytes <= 0 {
		return nil, fmt.Errorf("ristretto: max cost must be > 0, got %d", maxCostBytes)
	}
	counters := maxCostBytes / 100 * 10 // ~10x expected items
	if counters < 1000 {
		counters = 1000
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: counters,
		MaxCost:     maxCostBytes,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("ristretto: %w", err)
	}
	return &Cache{c: c}, nil
}

// NewMB creates a cache bounded to sizeMB megabytes.
func NewMB(sizeMB int64) (*Cache, error) {
	return New(sizeMB * bytesPerMB)
}

// Get retrieves a copy of a value from the cache.
func (c *Cache) Get(_ context.Context, key string) (data []byte, ok bool, err error) {
	val, found := c.c.Get(key)
	if !found {
		return nil, false, nil
	}
	return append([]byte(nil), val...), true, nil
}

// Set stores a copy of value with the given TTL. A zero TTL never expires.
// Set waits for the write buffer so a following Get observes the value,
// unless ristretto's admission policy rejected it.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	v := append([]byte(nil), value...)
	cost := int64(len(v))
	if cost == 0 {
		cost = 1
	}
	c.c.SetWithTTL(key, v, cost, ttl)
	c.c.Wait()
	return nil
}

// Delete removes a value from the cache.
func (c *Cache) Delete(_ context.Context, key string) error {
	c.c.Del(key)
	return nil
}

// Stats reports hit and miss counters since creation.
func (c *Cache) Stats() (hits, misses uint64) {
	if c.c.Metrics == nil {
		return 0, 0
	}
	return c.c.Metrics.Hits(), c.c.Metrics.Misses()
}

// Close shuts down the cache and releases resources.
func (c *Cache) Close() {
	c.c.Close()
}
