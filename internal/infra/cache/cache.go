// Package cache stores fetched source payloads with a per-entry TTL.
//
// A lookup misses both when the key is absent and when its entry has
// expired. Expired entries stay readable through GetStale until they are
// pruned, which is what the fallback path relies on.
package cache

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/vietddude/buildforge/internal/core/domain"
)

// Store is the cache contract used by the orchestrator.
type Store interface {
	// Get returns a fresh value. Expired entries are reported as a miss.
	Get(ctx context.Context, key string) (domain.Payload, bool)

	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value domain.Payload, ttl time.Duration) error

	// GetStale returns the last stored value even if it has expired.
	GetStale(ctx context.Context, key string) (domain.Payload, bool)
}

// Entry is a cached value. It is replaced, never mutated.
type Entry struct {
	Key       string         `json:"key"`
	Value     domain.Payload `json:"value"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// Fresh reports whether the entry may still be served at now.
func (e Entry) Fresh(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}

// Stats holds hit/miss counters.
type Stats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// Key builds the cache key for a query: {source_id}:{hash(normalized query)}.
func Key(sourceID string, q domain.SourceQuery) string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], xxhash.Sum64String(q.Normalize()))
	return sourceID + ":" + hex.EncodeToString(buf[:])
}
