package app

import (
	"sync"
	"time"

	"github.com/inkwellhq/quotad/ports"
)

// UsageCache is a TTL-bounded in-process cache of usage records keyed by
// user ID. It is purely a latency optimization: it never serializes
// increments and is never the sole basis for a consumption decision.
// Day-boundary staleness is judged by the caller against the Clock; the
// cache only enforces its own TTL.
type UsageCache struct {
	mu         sync.RWMutex
	entries    map[string]cacheEntry
	ttl        time.Duration
	maxEntries int
	clock      ports.Clock
}

type cacheEntry struct {
	rec       ports.UsageRecord
	expiresAt time.Time
}

// CacheConfig configures the usage cache.
type CacheConfig struct {
	TTL        time.Duration // entry lifetime (default: 30s)
	MaxEntries int           // purge trigger threshold (default: 10000)
}

// NewUsageCache creates a usage cache.
func NewUsageCache(clock ports.Clock, cfg CacheConfig) *UsageCache {
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 10000
	}
	return &UsageCache{
		entries:    make(map[string]cacheEntry),
		ttl:        cfg.TTL,
		maxEntries: cfg.MaxEntries,
		clock:      clock,
	}
}

// Get returns the cached record for a user, if present and within TTL.
func (c *UsageCache) Get(userID string) (ports.UsageRecord, bool) {
	c.mu.RLock()
	e, ok := c.entries[userID]
	c.mu.RUnlock()

	if !ok || c.clock.Now().After(e.expiresAt) {
		return ports.UsageRecord{}, false
	}
	return e.rec, true
}

// Put stores a record. When the cache has grown past its threshold,
// expired entries are purged inline rather than by a background goroutine.
func (c *UsageCache) Put(userID string, rec ports.UsageRecord) {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxEntries {
		for k, e := range c.entries {
			if now.After(e.expiresAt) {
				delete(c.entries, k)
			}
		}
	}

	c.entries[userID] = cacheEntry{rec: rec, expiresAt: now.Add(c.ttl)}
}

// Invalidate drops the cached record for a user.
func (c *UsageCache) Invalidate(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID)
}

// Len returns the number of cached entries, expired included (for testing).
func (c *UsageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
