// Package cache provides a TTL cache for search results.
package cache

import (
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// DefaultTTL is the fallback expiry for cached entries.
const DefaultTTL = 2 * time.Minute

// Cache is an in-memory TTL store keyed by string.
type Cache struct {
	store *gocache.Cache
	ttl   time.Duration
}

// New creates a cache with the given default TTL.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		store: gocache.New(ttl, 2*ttl),
		ttl:   ttl,
	}
}

// Get returns the cached value for key, or false when absent or expired.
func (c *Cache) Get(key string) (interface{}, bool) {
	return c.store.Get(key)
}

// Set stores value under key with the default TTL.
func (c *Cache) Set(key string, value interface{}) {
	c.store.Set(key, value, c.ttl)
}

// SetWithTTL stores value under key with an explicit TTL.
func (c *Cache) SetWithTTL(key string, value interface{}, ttl time.Duration) {
	c.store.Set(key, value, ttl)
}

// Delete removes a single key.
func (c *Cache) Delete(key string) {
	c.store.Delete(key)
}

// DeletePrefix removes every key with the given prefix. Used to drop an
// organization's cached searches when its corpus changes.
func (c *Cache) DeletePrefix(prefix string) int {
	deleted := 0
	for key := range c.store.Items() {
		if strings.HasPrefix(key, prefix) {
			c.store.Delete(key)
			deleted++
		}
	}
	return deleted
}

// Flush drops all entries.
func (c *Cache) Flush() {
	c.store.Flush()
}
