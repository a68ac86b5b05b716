// Package source contains the clients that talk to external game-data
// sources: HTTP JSON APIs (market, community analytics) and the local static
// database export.
package source

import (
	"context"

	"github.com/vietddude/buildforge/internal/core/domain"
	"github.com/vietddude/buildforge/internal/infra/cache"
)

// Client is the contract every data source implements.
type Client interface {
	// Fetch retrieves the payload for q. Errors are *domain.SourceError
	// (network or parse) or *domain.ValidationError for unsupported kinds.
	Fetch(ctx context.Context, q domain.SourceQuery) (domain.Payload, error)
	// HealthCheck reports whether the source is reachable.
	HealthCheck(ctx context.Context) bool
	// SourceID returns the stable identifier of the source.
	SourceID() string
	// CacheKey returns the cache key for q under this source's namespace.
	CacheKey(q domain.SourceQuery) string
}

// Monitored is implemented by clients that track request health.
type Monitored interface {
	Monitor() *Monitor
}

// Variant names used in configuration.
const (
	VariantMarket    = "market"
	VariantStaticDB  = "staticdb"
	VariantCommunity = "community"
)

func cacheKey(sourceID string, q domain.SourceQuery) string {
	return cache.Key(sourceID, q)
}
