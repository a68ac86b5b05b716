package aggregate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vietddude/buildforge/internal/core/domain"
	"github.com/vietddude/buildforge/internal/infra/cache"
	"github.com/vietddude/buildforge/internal/infra/storage"
	"github.com/vietddude/buildforge/internal/metrics"
)

// Fallback tiers, in the order they are tried.
const (
	TierStale     = "stale"
	TierSnapshot  = "snapshot"
	TierSynthetic = "synthetic"
)

// defaultTemplates are the synthetic payloads served when a source has
// never answered. They are kept as JSON so every result decodes into a
// fresh, unshared value.
var defaultTemplates = map[string]string{
	domain.KindMarketPrices: `{
		"currency": "chaos",
		"prices": {"chaos_orb": 1, "divine_orb": 150, "exalted_orb": 12, "orb_of_alchemy": 0.2}
	}`,
	domain.KindStaticSkills: `{
		"skills": {
			"generic":    {"base_damage": 10, "damage_growth": 0.05, "casts_per_second": 1.0},
			"fireball":   {"base_damage": 12, "damage_growth": 0.09, "casts_per_second": 1.33},
			"arc":        {"base_damage": 8,  "damage_growth": 0.08, "casts_per_second": 1.25},
			"ice_nova":   {"base_damage": 11, "damage_growth": 0.08, "casts_per_second": 1.4},
			"cyclone":    {"base_damage": 9,  "damage_growth": 0.07, "casts_per_second": 3.33}
		}
	}`,
	domain.KindStaticItems: `{"items": {}}`,
	domain.KindCommunityBuilds: `{
		"builds": [
			{
				"class": "witch",
				"level": 70,
				"main_skill": "fireball",
				"items": [
					{"slot": "body", "modifiers": [
						{"stat": "energy_shield", "kind": "flat", "value": 200},
						{"stat": "fire_resistance", "kind": "flat", "value": 30}
					]}
				],
				"support_gems": [{"name": "added_fire_damage", "kind": "more", "value": 25}]
			}
		]
	}`,
}

// FallbackOption configures a Fallback.
type FallbackOption func(*Fallback)

// WithTemplate overrides the synthetic payload for kind.
func WithTemplate(kind string, payload domain.Payload) FallbackOption {
	return func(f *Fallback) {
		raw, err := json.Marshal(payload)
		if err != nil {
			f.log.Warn("ignoring unencodable fallback template", "kind", kind, "error", err)
			return
		}
		f.templates[strings.ToLower(kind)] = raw
	}
}

// WithFallbackClock overrides the time source.
func WithFallbackClock(now func() time.Time) FallbackOption {
	return func(f *Fallback) { f.now = now }
}

// WithFallbackLogger sets the logger.
func WithFallbackLogger(l *slog.Logger) FallbackOption {
	return func(f *Fallback) { f.log = l }
}

// Fallback produces best-effort results for sources that could not be
// fetched: a stale cache entry, then the last-known-good snapshot, then a
// deterministic synthetic payload. It never fails.
type Fallback struct {
	cache     cache.Store
	snapshots storage.SnapshotStore
	templates map[string][]byte
	now       func() time.Time
	log       *slog.Logger
}

// NewFallback creates a provider. snapshots may be nil.
func NewFallback(c cache.Store, snapshots storage.SnapshotStore, opts ...FallbackOption) *Fallback {
	f := &Fallback{
		cache:     c,
		snapshots: snapshots,
		templates: make(map[string][]byte, len(defaultTemplates)),
		now:       time.Now,
		log:       slog.Default(),
	}
	for kind, raw := range defaultTemplates {
		f.templates[kind] = []byte(raw)
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Provide returns a fallback result for q. Stale and snapshot results are
// degraded, synthetic ones failed; all are marked IsFallback.
func (f *Fallback) Provide(ctx context.Context, sourceID string, q domain.SourceQuery, key string) domain.SourceResult {
	if f.cache != nil {
		if payload, ok := f.cache.GetStale(ctx, key); ok {
			f.record(sourceID, TierStale)
			return domain.SourceResult{
				SourceID:   sourceID,
				Status:     domain.ResultDegraded,
				Payload:    payload,
				FetchedAt:  f.now(),
				IsFallback: true,
			}
		}
	}

	if f.snapshots != nil {
		snap, err := f.snapshots.Latest(ctx, key)
		switch {
		case err == nil:
			f.record(sourceID, TierSnapshot)
			return domain.SourceResult{
				SourceID:   sourceID,
				Status:     domain.ResultDegraded,
				Payload:    snap.Payload,
				FetchedAt:  snap.FetchedAt,
				IsFallback: true,
			}
		case !errors.Is(err, storage.ErrSnapshotNotFound):
			f.log.Warn("snapshot lookup failed", "source", sourceID, "error", err)
		}
	}

	f.record(sourceID, TierSynthetic)
	return domain.SourceResult{
		SourceID:   sourceID,
		Status:     domain.ResultFailed,
		Payload:    f.synthetic(q),
		FetchedAt:  f.now(),
		IsFallback: true,
	}
}

func (f *Fallback) synthetic(q domain.SourceQuery) domain.Payload {
	kind := strings.ToLower(strings.TrimSpace(q.Kind))
	if raw, ok := f.templates[kind]; ok {
		var payload domain.Payload
		if err := json.Unmarshal(raw, &payload); err == nil {
			return payload
		}
	}
	return domain.Payload{
		"placeholder": fmt.Sprintf("no data available for %s", kind),
	}
}

func (f *Fallback) record(sourceID, tier string) {
	metrics.FallbacksTotal.WithLabelValues(sourceID, tier).Inc()
	f.log.Warn("serving fallback data", "source", sourceID, "tier", tier)
}
