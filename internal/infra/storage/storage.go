// Package storage persists last-known-good source payloads so a source can
// be served from its most recent successful answer while it is down.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/vietddude/buildforge/internal/core/domain"
)

// ErrSnapshotNotFound is returned when no snapshot exists for a key.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// Snapshot is the last successful payload of a source for one cache key.
type Snapshot struct {
	SourceID  string
	CacheKey  string
	Kind      string
	Payload   domain.Payload
	FetchedAt time.Time
}

// SnapshotStore handles snapshot storage operations.
type SnapshotStore interface {
	// Save upserts the snapshot for its cache key.
	Save(ctx context.Context, snap Snapshot) error

	// Latest returns the snapshot for key or ErrSnapshotNotFound.
	Latest(ctx context.Context, key string) (*Snapshot, error)

	// PruneBefore deletes snapshots fetched before cutoff.
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
