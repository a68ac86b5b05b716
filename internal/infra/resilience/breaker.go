// Package resilience holds the per-source protection primitives: a circuit
// breaker, a rate limiter and retry with exponential backoff.
//
// Every type here is an explicit object owned by whoever constructs it;
// nothing is registered globally.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/vietddude/buildforge/internal/core/domain"
)

// BreakerConfig configures a circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit.
	FailureThreshold int `yaml:"failure_threshold"`
	// RecoveryTimeout is how long the circuit stays open before a probe is allowed.
	RecoveryTimeout time.Duration `yaml:"recovery_timeout"`
	// BackoffMultiplier scales RecoveryTimeout on each consecutive re-open.
	// Values <= 1 keep the timeout fixed.
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
	// MaxRecoveryTimeout caps the scaled timeout.
	MaxRecoveryTimeout time.Duration `yaml:"max_recovery_timeout"`
}

// DefaultBreakerConfig returns the default breaker configuration.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold:   5,
		RecoveryTimeout:    60 * time.Second,
		BackoffMultiplier:  1,
		MaxRecoveryTimeout: 10 * time.Minute,
	}
}

// Breaker is a Closed/Open/HalfOpen state machine for one source.
type Breaker struct {
	mu sync.Mutex

	cfg BreakerConfig
	now func() time.Time

	state         domain.CircuitStateName
	failureCount  int
	lastFailureAt time.Time
	nextProbeAt   time.Time
	openStreak    int  // consecutive Open entries without closing
	probing       bool // a HalfOpen probe is in flight

	onStateChange func(from, to domain.CircuitStateName)
}

// NewBreaker creates a closed breaker. Zero config fields take defaults.
func NewBreaker(cfg BreakerConfig) *Breaker {
	def := DefaultBreakerConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = def.RecoveryTimeout
	}
	if cfg.BackoffMultiplier < 1 {
		cfg.BackoffMultiplier = 1
	}
	if cfg.MaxRecoveryTimeout < cfg.RecoveryTimeout {
		cfg.MaxRecoveryTimeout = max(def.MaxRecoveryTimeout, cfg.RecoveryTimeout)
	}

	return &Breaker{
		cfg:   cfg,
		now:   time.Now,
		state: domain.CircuitClosed,
	}
}

// SetClock overrides the time source.
func (b *Breaker) SetClock(now func() time.Time) {
	b.mu.Lock()
	b.now = now
	b.mu.Unlock()
}

// OnStateChange registers a callback invoked on every transition.
// The callback runs with the breaker lock held and must not call back into it.
func (b *Breaker) OnStateChange(fn func(from, to domain.CircuitStateName)) {
	b.mu.Lock()
	b.onStateChange = fn
	b.mu.Unlock()
}

// Allow reports whether a call may proceed. In HalfOpen only a single probe
// is admitted until its outcome is recorded.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if b.state == domain.CircuitOpen {
		if now.Before(b.nextProbeAt) {
			return fmt.Errorf("%w: retry after %v", domain.ErrCircuitOpen, b.nextProbeAt.Sub(now))
		}
		b.transitionTo(domain.CircuitHalfOpen)
	}

	if b.state == domain.CircuitHalfOpen {
		if b.probing {
			return fmt.Errorf("%w: probe in flight", domain.ErrCircuitOpen)
		}
		b.probing = true
	}
	return nil
}

// RecordSuccess closes the circuit and resets the failure count.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount = 0
	b.probing = false
	if b.state != domain.CircuitClosed {
		b.openStreak = 0
		b.transitionTo(domain.CircuitClosed)
	}
}

// RecordFailure counts a failure; a failed probe re-opens the circuit.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.failureCount++
	b.lastFailureAt = now

	switch b.state {
	case domain.CircuitClosed:
		if b.failureCount >= b.cfg.FailureThreshold {
			b.open(now)
		}
	case domain.CircuitHalfOpen:
		b.probing = false
		b.open(now)
	case domain.CircuitOpen:
		// Late result of a call admitted before the circuit opened.
	}
}

// RecordAbort releases a HalfOpen probe slot without a verdict, e.g. when
// the caller cancelled before the source answered.
func (b *Breaker) RecordAbort() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
}

// State returns the current state. An open circuit whose recovery timeout
// has elapsed reports HalfOpen.
func (b *Breaker) State() domain.CircuitStateName {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.visibleState()
}

// Snapshot returns a copy of the breaker state.
func (b *Breaker) Snapshot() domain.CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return domain.CircuitState{
		State:         b.visibleState(),
		FailureCount:  b.failureCount,
		LastFailureAt: b.lastFailureAt,
		NextProbeAt:   b.nextProbeAt,
	}
}

// Execute runs fn under breaker protection. A cancelled ctx releases the
// slot without a verdict; any other error, deadlines included, is a failure.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.Allow(); err != nil {
		return err
	}

	err := fn(ctx)
	switch {
	case err == nil:
		b.RecordSuccess()
	case errors.Is(context.Cause(ctx), context.Canceled):
		b.RecordAbort()
	default:
		b.RecordFailure()
	}
	return err
}

func (b *Breaker) visibleState() domain.CircuitStateName {
	if b.state == domain.CircuitOpen && !b.now().Before(b.nextProbeAt) {
		return domain.CircuitHalfOpen
	}
	return b.state
}

func (b *Breaker) open(now time.Time) {
	b.openStreak++
	b.nextProbeAt = now.Add(b.recoveryTimeout())
	b.transitionTo(domain.CircuitOpen)
}

func (b *Breaker) recoveryTimeout() time.Duration {
	timeout := float64(b.cfg.RecoveryTimeout) * math.Pow(b.cfg.BackoffMultiplier, float64(b.openStreak-1))
	if timeout > float64(b.cfg.MaxRecoveryTimeout) {
		timeout = float64(b.cfg.MaxRecoveryTimeout)
	}
	return time.Duration(timeout)
}

func (b *Breaker) transitionTo(to domain.CircuitStateName) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if to == domain.CircuitClosed {
		b.failureCount = 0
	}
	if b.onStateChange != nil {
		b.onStateChange(from, to)
	}
}
