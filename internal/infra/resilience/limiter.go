package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/vietddude/buildforge/internal/core/domain"
)

// LimiterConfig configures a per-source request pacer.
type LimiterConfig struct {
	// RequestsPerMinute is the sustained rate. Zero disables pacing.
	RequestsPerMinute int `yaml:"requests_per_minute"`
	// Burst is the bucket size (default: 1, or RequestsPerMinute/10 if larger).
	Burst int `yaml:"burst"`
	// MaxWait bounds how long a caller is deferred before being rejected.
	MaxWait time.Duration `yaml:"max_wait"`
	// DailyQuota caps requests per local day. Zero means unlimited.
	DailyQuota int `yaml:"daily_quota"`
}

// LimiterUsage is a snapshot of limiter counters.
type LimiterUsage struct {
	RequestsPerMinute int       `json:"requests_per_minute"`
	TokensAvailable   float64   `json:"tokens_available"`
	Deferred          int64     `json:"deferred"`
	Rejected          int64     `json:"rejected"`
	DailyQuota        int       `json:"daily_quota"`
	DailyUsed         int       `json:"daily_used"`
	NextResetAt       time.Time `json:"next_reset_at"`
}

// Limiter paces requests to one source using a token bucket.
type Limiter struct {
	cfg     LimiterConfig
	limiter *rate.Limiter
	now     func() time.Time

	mu        sync.Mutex
	dailyUsed int
	resetAt   time.Time
	deferred  int64
	rejected  int64
}

// NewLimiter creates a limiter from cfg.
func NewLimiter(cfg LimiterConfig) *Limiter {
	limit := rate.Inf
	burst := cfg.Burst
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Limit(float64(cfg.RequestsPerMinute) / 60.0)
		if burst <= 0 {
			burst = max(1, cfg.RequestsPerMinute/10)
		}
	}
	if burst <= 0 {
		burst = 1
	}

	l := &Limiter{
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, burst),
		now:     time.Now,
	}
	l.resetAt = nextMidnight(l.now())
	return l
}

// Wait blocks until the request may proceed, for at most MaxWait. It returns
// how long the caller was deferred, or ErrRateLimitExceeded when the request
// cannot be admitted within bounds.
func (l *Limiter) Wait(ctx context.Context) (time.Duration, error) {
	if err := l.takeQuota(); err != nil {
		return 0, err
	}

	now := l.now()
	r := l.limiter.ReserveN(now, 1)
	if !r.OK() {
		l.refundQuota()
		return 0, l.reject("burst exceeded")
	}

	delay := r.DelayFrom(now)
	if delay == 0 {
		return 0, nil
	}
	if delay > l.cfg.MaxWait {
		r.CancelAt(now)
		l.refundQuota()
		return 0, l.reject(fmt.Sprintf("would wait %v, max %v", delay, l.cfg.MaxWait))
	}

	l.mu.Lock()
	l.deferred++
	l.mu.Unlock()

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		r.Cancel()
		l.refundQuota()
		return 0, ctx.Err()
	case <-timer.C:
		return delay, nil
	}
}

// Usage returns current limiter counters.
func (l *Limiter) Usage() LimiterUsage {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollDayLocked(now)

	return LimiterUsage{
		RequestsPerMinute: l.cfg.RequestsPerMinute,
		TokensAvailable:   l.limiter.TokensAt(now),
		Deferred:          l.deferred,
		Rejected:          l.rejected,
		DailyQuota:        l.cfg.DailyQuota,
		DailyUsed:         l.dailyUsed,
		NextResetAt:       l.resetAt,
	}
}

func (l *Limiter) takeQuota() error {
	if l.cfg.DailyQuota <= 0 {
		return nil
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollDayLocked(now)

	if l.dailyUsed >= l.cfg.DailyQuota {
		l.rejected++
		return fmt.Errorf("%w: daily quota of %d used, resets at %s",
			domain.ErrRateLimitExceeded, l.cfg.DailyQuota, l.resetAt.Format(time.RFC3339))
	}
	l.dailyUsed++
	return nil
}

func (l *Limiter) refundQuota() {
	if l.cfg.DailyQuota <= 0 {
		return
	}
	l.mu.Lock()
	if l.dailyUsed > 0 {
		l.dailyUsed--
	}
	l.mu.Unlock()
}

func (l *Limiter) reject(reason string) error {
	l.mu.Lock()
	l.rejected++
	l.mu.Unlock()
	return fmt.Errorf("%w: %s", domain.ErrRateLimitExceeded, reason)
}

func (l *Limiter) rollDayLocked(now time.Time) {
	if !now.Before(l.resetAt) {
		l.dailyUsed = 0
		l.resetAt = nextMidnight(now)
	}
}

func nextMidnight(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
}
