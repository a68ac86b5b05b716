package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/buildforge/internal/infra/cache"
	"github.com/vietddude/buildforge/internal/infra/storage"
	"github.com/vietddude/buildforge/internal/metrics"
)

// CachePruner is a cache that holds expired entries in process memory.
type CachePruner interface {
	Prune() int
	Stats() cache.Stats
}

// PrunerConfig holds the pruning schedule.
type PrunerConfig struct {
	Interval time.Duration
	// SnapshotRetention is how long snapshots are kept. Zero keeps them forever.
	SnapshotRetention time.Duration
}

// Pruner deletes expired cache entries and old snapshots.
type Pruner struct {
	cfg       PrunerConfig
	cache     CachePruner
	snapshots storage.SnapshotStore
	now       func() time.Time
	log       *slog.Logger
}

// NewPruner creates a new Pruner worker. Either store may be nil.
func NewPruner(cfg PrunerConfig, c CachePruner, snapshots storage.SnapshotStore, logger *slog.Logger) *Pruner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pruner{
		cfg:       cfg,
		cache:     c,
		snapshots: snapshots,
		now:       time.Now,
		log:       logger,
	}
}

// Start runs the pruner loop until ctx is done.
func (p *Pruner) Start(ctx context.Context) {
	if p.cfg.Interval <= 0 || (p.cache == nil && p.snapshots == nil) {
		return // Pruning disabled
	}

	ticker := time.NewTicker(max(p.cfg.Interval, time.Second))
	defer ticker.Stop()

	// Initial prune
	p.PruneOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.PruneOnce(ctx)
		}
	}
}

// PruneOnce runs a single pass and reports how much was removed.
func (p *Pruner) PruneOnce(ctx context.Context) (entries int, snapshots int64) {
	if p.cache != nil {
		entries = p.cache.Prune()
		metrics.CacheEntries.Set(float64(p.cache.Stats().Entries))
	}

	if p.snapshots != nil && p.cfg.SnapshotRetention > 0 {
		cutoff := p.now().Add(-p.cfg.SnapshotRetention)
		n, err := p.snapshots.PruneBefore(ctx, cutoff)
		if err != nil {
			p.log.Error("failed to prune snapshots", "cutoff", cutoff, "error", err)
		}
		snapshots = n
	}

	if entries > 0 || snapshots > 0 {
		p.log.Debug("pruned", "cache_entries", entries, "snapshots", snapshots)
	}
	return entries, snapshots
}
