// Package aggregate fetches data from every configured source concurrently,
// protects each source with its own breaker and limiter, substitutes
// fallback data for failed sources and merges the results by trust.
package aggregate

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/buildforge/internal/core/domain"
	"github.com/vietddude/buildforge/internal/infra/resilience"
	"github.com/vietddude/buildforge/internal/infra/source"
	"github.com/vietddude/buildforge/internal/metrics"
)

// DefaultTTL is used for entries registered without a TTL.
const DefaultTTL = time.Hour

// Entry bundles a source client with the resilience state owned for it.
type Entry struct {
	Client  source.Client
	Breaker *resilience.Breaker
	Limiter *resilience.Limiter
	// Trust orders sources in the merge; higher wins.
	Trust int
	TTL   time.Duration
	Retry resilience.RetryConfig
}

// ID returns the source id of the entry.
func (e *Entry) ID() string {
	return e.Client.SourceID()
}

// Registry holds one Entry per source. Breaker and limiter state lives here
// for the life of the process.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	log     *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		entries: make(map[string]*Entry),
		log:     logger,
	}
}

// Register adds e. Missing breaker, limiter, TTL and retry settings take
// defaults.
func (r *Registry) Register(e *Entry) error {
	if e == nil || e.Client == nil {
		return fmt.Errorf("register source: nil client")
	}
	id := e.Client.SourceID()
	if id == "" {
		return fmt.Errorf("register source: empty source id")
	}

	if e.Breaker == nil {
		e.Breaker = resilience.NewBreaker(resilience.DefaultBreakerConfig())
	}
	if e.Limiter == nil {
		e.Limiter = resilience.NewLimiter(resilience.LimiterConfig{})
	}
	if e.TTL <= 0 {
		e.TTL = DefaultTTL
	}
	if e.Retry.MaxAttempts <= 0 {
		e.Retry = resilience.DefaultRetryConfig
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[id]; exists {
		return fmt.Errorf("register source: duplicate source id %q", id)
	}

	log := r.log.With("source", id)
	e.Breaker.OnStateChange(func(from, to domain.CircuitStateName) {
		metrics.CircuitState.WithLabelValues(id).Set(circuitGauge(to))
		if to == domain.CircuitOpen {
			log.Warn("circuit opened", "from", from)
		} else {
			log.Info("circuit state changed", "from", from, "to", to)
		}
	})
	metrics.CircuitState.WithLabelValues(id).Set(circuitGauge(domain.CircuitClosed))

	r.entries[id] = e
	return nil
}

// Get returns the entry for id.
func (r *Registry) Get(id string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return e, ok
}

// IDs returns all registered source ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Entries returns all entries sorted by source id.
func (r *Registry) Entries() []*Entry {
	ids := r.IDs()

	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Entry, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.entries[id])
	}
	return out
}

// Len returns the number of registered sources.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// CircuitStates returns a snapshot of every breaker.
func (r *Registry) CircuitStates() map[string]domain.CircuitState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]domain.CircuitState, len(r.entries))
	for id, e := range r.entries {
		out[id] = e.Breaker.Snapshot()
	}
	return out
}

func circuitGauge(s domain.CircuitStateName) float64 {
	switch s {
	case domain.CircuitHalfOpen:
		return 1
	case domain.CircuitOpen:
		return 2
	default:
		return 0
	}
}
