package cache

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/buildforge/internal/core/domain"
)

// MemoryCache is an in-process Store guarded by a RWMutex.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]Entry

	staleRetention time.Duration
	now            func() time.Time

	hits   int64
	misses int64
}

// Option configures a MemoryCache.
type Option func(*MemoryCache)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *MemoryCache) { c.now = now }
}

// WithStaleRetention sets how long expired entries are kept for GetStale.
// Zero keeps them until overwritten.
func WithStaleRetention(d time.Duration) Option {
	return func(c *MemoryCache) { c.staleRetention = d }
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache(opts ...Option) *MemoryCache {
	c := &MemoryCache{
		entries: make(map[string]Entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the value under key if it has not expired.
func (c *MemoryCache) Get(_ context.Context, key string) (domain.Payload, bool) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok || !entry.Fresh(now) {
		c.misses++
		return nil, false
	}
	c.hits++
	return entry.Value.Clone(), true
}

// Set stores value for ttl. A non-positive ttl stores an already expired
// entry, which is still useful as stale data.
func (c *MemoryCache) Set(_ context.Context, key string, value domain.Payload, ttl time.Duration) error {
	entry := Entry{
		Key:       key,
		Value:     value.Clone(),
		ExpiresAt: c.now().Add(ttl),
	}

	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
	return nil
}

// GetStale returns the value under key regardless of expiry.
func (c *MemoryCache) GetStale(_ context.Context, key string) (domain.Payload, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return entry.Value.Clone(), true
}

// Prune removes entries whose stale retention has elapsed and returns how
// many were removed.
func (c *MemoryCache) Prune() int {
	if c.staleRetention <= 0 {
		return 0
	}
	cutoff := c.now().Add(-c.staleRetention)

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, entry := range c.entries {
		if entry.ExpiresAt.Before(cutoff) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Stats returns a snapshot of cache counters.
func (c *MemoryCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Entries: len(c.entries),
		Hits:    c.hits,
		Misses:  c.misses,
	}
}
