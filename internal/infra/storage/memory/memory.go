// Package memory is an in-process SnapshotStore.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/buildforge/internal/infra/storage"
)

type SnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[string]storage.Snapshot
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{snapshots: make(map[string]storage.Snapshot)}
}

func (s *SnapshotStore) Save(ctx context.Context, snap storage.Snapshot) error {
	snap.Payload = snap.Payload.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.snapshots[snap.CacheKey]; ok && prev.FetchedAt.After(snap.FetchedAt) {
		return nil
	}
	s.snapshots[snap.CacheKey] = snap
	return nil
}

func (s *SnapshotStore) Latest(ctx context.Context, key string) (*storage.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[key]
	if !ok {
		return nil, storage.ErrSnapshotNotFound
	}
	snap.Payload = snap.Payload.Clone()
	return &snap, nil
}

func (s *SnapshotStore) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for key, snap := range s.snapshots {
		if snap.FetchedAt.Before(cutoff) {
			delete(s.snapshots, key)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored snapshots.
func (s *SnapshotStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snapshots)
}
