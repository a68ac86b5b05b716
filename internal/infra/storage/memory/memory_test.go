package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vietddude/buildforge/internal/core/domain"
	"github.com/vietddude/buildforge/internal/infra/storage"
)

func TestSnapshotStore(t *testing.T) {
	ctx := context.Background()
	s := NewSnapshotStore()
	t0 := time.Unix(1_000_000, 0)

	if _, err := s.Latest(ctx, "market:abc"); !errors.Is(err, storage.ErrSnapshotNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	payload := domain.Payload{"prices": 1}
	_ = s.Save(ctx, storage.Snapshot{SourceID: "market", CacheKey: "market:abc", Payload: payload, FetchedAt: t0})
	payload["prices"] = 2

	snap, err := s.Latest(ctx, "market:abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Payload["prices"] != 1 {
		t.Errorf("stored payload must not alias the caller's map, got %v", snap.Payload["prices"])
	}

	// An older snapshot never replaces a newer one.
	_ = s.Save(ctx, storage.Snapshot{CacheKey: "market:abc", Payload: domain.Payload{"prices": 0}, FetchedAt: t0.Add(-time.Minute)})
	snap, _ = s.Latest(ctx, "market:abc")
	if snap.Payload["prices"] != 1 {
		t.Errorf("expected newest snapshot kept, got %v", snap.Payload["prices"])
	}

	_ = s.Save(ctx, storage.Snapshot{CacheKey: "staticdb:def", FetchedAt: t0.Add(time.Hour)})
	removed, _ := s.PruneBefore(ctx, t0.Add(time.Minute))
	if removed != 1 || s.Len() != 1 {
		t.Errorf("expected one pruned and one kept, got removed=%d len=%d", removed, s.Len())
	}
}
