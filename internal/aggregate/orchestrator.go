package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/buildforge/internal/core/domain"
	"github.com/vietddude/buildforge/internal/infra/cache"
	"github.com/vietddude/buildforge/internal/infra/resilience"
	"github.com/vietddude/buildforge/internal/infra/storage"
	"github.com/vietddude/buildforge/internal/metrics"
)

// Config holds orchestration limits.
type Config struct {
	// Deadline bounds a whole FetchAll call.
	Deadline time.Duration `yaml:"deadline"`
	// FetchTimeout bounds a single fetch including retries.
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	// MaxConcurrency caps concurrent pipelines; zero means one per query.
	MaxConcurrency int `yaml:"max_concurrency"`
	// SideEffectTimeout bounds fallback lookups and snapshot writes that run
	// after the caller's context is done.
	SideEffectTimeout time.Duration `yaml:"side_effect_timeout"`
}

// DefaultConfig returns the default orchestration limits.
func DefaultConfig() Config {
	return Config{
		Deadline:          20 * time.Second,
		FetchTimeout:      12 * time.Second,
		SideEffectTimeout: 2 * time.Second,
	}
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSnapshots enables last-known-good persistence of successful fetches.
func WithSnapshots(s storage.SnapshotStore) Option {
	return func(o *Orchestrator) { o.snapshots = s }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// Orchestrator runs the per-source pipeline for every query of a request:
// cache, single-flight, breaker, limiter, fetch with retry, and fallback.
type Orchestrator struct {
	cfg       Config
	registry  *Registry
	cache     cache.Store
	fallback  *Fallback
	snapshots storage.SnapshotStore
	now       func() time.Time
	log       *slog.Logger

	mu       sync.Mutex
	flights  map[string]*flight
	inflight sync.WaitGroup
}

// flight is one in-progress fetch shared by every request that missed the
// cache for the same key. Its context is cancelled once no waiter is left.
type flight struct {
	key    string
	ctx    context.Context
	cancel context.CancelCauseFunc
	done   chan struct{}
	result domain.SourceResult
	refs   int
}

// New creates an orchestrator over registry.
func New(cfg Config, registry *Registry, c cache.Store, fallback *Fallback, opts ...Option) *Orchestrator {
	def := DefaultConfig()
	if cfg.Deadline <= 0 {
		cfg.Deadline = def.Deadline
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = def.FetchTimeout
	}
	if cfg.SideEffectTimeout <= 0 {
		cfg.SideEffectTimeout = def.SideEffectTimeout
	}

	o := &Orchestrator{
		cfg:      cfg,
		registry: registry,
		cache:    c,
		fallback: fallback,
		now:      time.Now,
		log:      slog.Default(),
		flights:  make(map[string]*flight),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// FetchAll fetches every query concurrently and merges the results. Source
// failures never produce an error; they degrade the dataset status. Only an
// invalid query set returns an error.
func (o *Orchestrator) FetchAll(ctx context.Context, queries []domain.SourceQuery) (*domain.Dataset, error) {
	entries, err := o.validate(queries)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, o.cfg.Deadline)
	defer cancel()

	limit := o.cfg.MaxConcurrency
	if limit <= 0 || limit > len(queries) {
		limit = len(queries)
	}

	contribs := make([]contribution, len(queries))
	var g errgroup.Group
	g.SetLimit(limit)
	for i, q := range queries {
		e := entries[i]
		g.Go(func() error {
			contribs[i] = contribution{result: o.pipeline(ctx, e, q), trust: e.Trust}
			return nil
		})
	}
	_ = g.Wait()

	ds := merge(contribs)
	metrics.DatasetsTotal.WithLabelValues(string(ds.Status)).Inc()
	o.log.Debug("dataset assembled",
		"status", ds.Status,
		"sources", len(queries),
		"fallbacks", len(ds.Provenance.FallbackSources),
		"cache_hits", len(ds.Provenance.CacheHits),
	)
	return ds, nil
}

// Drain blocks until every detached fetch and snapshot write has finished.
func (o *Orchestrator) Drain() {
	o.inflight.Wait()
}

// Registry returns the source registry.
func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

func (o *Orchestrator) validate(queries []domain.SourceQuery) ([]*Entry, error) {
	if len(queries) == 0 {
		return nil, &domain.ValidationError{Field: "queries", Reason: "must not be empty"}
	}

	entries := make([]*Entry, len(queries))
	seen := make(map[string]struct{}, len(queries))
	for i, q := range queries {
		field := fmt.Sprintf("queries[%d]", i)
		if strings.TrimSpace(q.Kind) == "" {
			return nil, &domain.ValidationError{Field: field + ".kind", Reason: "must not be empty"}
		}
		e, ok := o.registry.Get(q.SourceID)
		if !ok {
			return nil, &domain.ValidationError{Field: field + ".source_id", Reason: fmt.Sprintf("unknown source %q", q.SourceID)}
		}
		if _, dup := seen[q.SourceID]; dup {
			return nil, &domain.ValidationError{Field: field + ".source_id", Reason: fmt.Sprintf("duplicate query for source %q", q.SourceID)}
		}
		seen[q.SourceID] = struct{}{}
		entries[i] = e
	}
	return entries, nil
}

// pipeline produces exactly one result for q.
func (o *Orchestrator) pipeline(ctx context.Context, e *Entry, q domain.SourceQuery) domain.SourceResult {
	id := e.ID()
	key := e.Client.CacheKey(q)

	if err := ctx.Err(); err != nil {
		return o.fallbackFor(ctx, id, q, key, err)
	}

	if payload, ok := o.cache.Get(ctx, key); ok {
		metrics.SourceFetchesTotal.WithLabelValues(id, "cache_hit").Inc()
		return domain.SourceResult{
			SourceID:  id,
			Status:    domain.ResultOK,
			Payload:   payload,
			FetchedAt: o.now(),
			CacheHit:  true,
		}
	}

	f, leader := o.join(ctx, key)
	if leader {
		o.inflight.Add(1)
		go func() {
			defer o.inflight.Done()
			o.run(f, e, q)
		}()
	} else {
		metrics.SourceFetchesTotal.WithLabelValues(id, "coalesced").Inc()
	}

	select {
	case <-f.done:
		o.leave(f, nil)
		return f.result
	case <-ctx.Done():
		err := ctx.Err()
		o.leave(f, err)
		return o.fallbackFor(ctx, id, q, key, err)
	}
}

// join attaches the caller to the flight for key, creating it if needed.
func (o *Orchestrator) join(ctx context.Context, key string) (*flight, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if f, ok := o.flights[key]; ok {
		f.refs++
		return f, false
	}

	fctx, cancel := context.WithCancelCause(context.WithoutCancel(ctx))
	f := &flight{key: key, ctx: fctx, cancel: cancel, done: make(chan struct{}), refs: 1}
	o.flights[key] = f
	return f, true
}

// leave detaches a waiter. The last waiter to abandon an unfinished flight
// cancels it with its own reason, so later callers start a new one.
func (o *Orchestrator) leave(f *flight, reason error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	f.refs--
	if f.refs == 0 && reason != nil {
		f.cancel(reason)
		if o.flights[f.key] == f {
			delete(o.flights, f.key)
		}
	}
}

// run performs the fetch for a flight and publishes its result.
func (o *Orchestrator) run(f *flight, e *Entry, q domain.SourceQuery) {
	key := f.key
	result, fresh := o.fetch(f.ctx, e, q, key)

	o.mu.Lock()
	if o.flights[key] == f {
		delete(o.flights, key)
	}
	o.mu.Unlock()

	f.result = result
	close(f.done)
	f.cancel(nil)

	if fresh && o.snapshots != nil {
		ctx, cancel := context.WithTimeout(context.Background(), o.cfg.SideEffectTimeout)
		defer cancel()
		err := o.snapshots.Save(ctx, storage.Snapshot{
			SourceID:  e.ID(),
			CacheKey:  key,
			Kind:      q.Kind,
			Payload:   result.Payload,
			FetchedAt: result.FetchedAt,
		})
		if err != nil {
			o.log.Warn("failed to save snapshot", "source", e.ID(), "error", err)
		}
	}
}

// fetch runs breaker, limiter and retried fetch. fresh reports whether the
// result came from the source itself. A local rate-limit rejection counts
// against the breaker like a source failure; caller cancellation does not.
func (o *Orchestrator) fetch(ctx context.Context, e *Entry, q domain.SourceQuery, key string) (domain.SourceResult, bool) {
	id := e.ID()

	var payload domain.Payload
	start := time.Now()
	err := e.Breaker.Execute(ctx, func(ctx context.Context) error {
		fetchCtx, cancel := context.WithTimeout(ctx, o.cfg.FetchTimeout)
		defer cancel()

		return resilience.Retry(fetchCtx, e.Retry, func(ctx context.Context) error {
			if _, err := e.Limiter.Wait(ctx); err != nil {
				if errors.Is(err, domain.ErrRateLimitExceeded) {
					metrics.RateLimitRejectionsTotal.WithLabelValues(id).Inc()
				}
				return err
			}
			p, err := e.Client.Fetch(ctx, q)
			if err != nil {
				return err
			}
			payload = p
			return nil
		})
	})
	if errors.Is(err, domain.ErrCircuitOpen) {
		metrics.SourceErrorsTotal.WithLabelValues(id, errorType(err)).Inc()
		return o.fallbackFor(ctx, id, q, key, err), false
	}
	metrics.SourceLatency.WithLabelValues(id).Observe(time.Since(start).Seconds())

	if err == nil {
		metrics.SourceFetchesTotal.WithLabelValues(id, "ok").Inc()
		if cerr := o.cache.Set(ctx, key, payload, e.TTL); cerr != nil {
			o.log.Warn("failed to cache payload", "source", id, "error", cerr)
		}
		return domain.SourceResult{
			SourceID:  id,
			Status:    domain.ResultOK,
			Payload:   payload,
			FetchedAt: o.now(),
		}, true
	}

	metrics.SourceFetchesTotal.WithLabelValues(id, "error").Inc()
	metrics.SourceErrorsTotal.WithLabelValues(id, errorType(err)).Inc()

	o.log.Debug("fetch failed", "source", id, "kind", q.Kind, "error", err)
	return o.fallbackFor(ctx, id, q, key, err), false
}

// fallbackFor asks the fallback provider for a result, using a fresh bounded
// context when ctx is already done.
func (o *Orchestrator) fallbackFor(ctx context.Context, id string, q domain.SourceQuery, key string, cause error) domain.SourceResult {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.SideEffectTimeout)
	defer cancel()

	r := o.fallback.Provide(fctx, id, q, key)
	if cause != nil {
		r.Error = cause.Error()
	}
	return r
}

func errorType(err error) string {
	switch {
	case errors.Is(err, domain.ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, domain.ErrRateLimitExceeded):
		return "rate_limited"
	case errors.Is(err, domain.ErrParse):
		return "parse"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, domain.ErrNetwork):
		return "network"
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	default:
		return "unknown"
	}
}
