package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vietddude/buildforge/internal/core/domain"
)

func TestLimiter_UnlimitedNeverWaits(t *testing.T) {
	l := NewLimiter(LimiterConfig{})
	for i := 0; i < 100; i++ {
		if d, err := l.Wait(context.Background()); err != nil || d != 0 {
			t.Fatalf("unexpected wait %v err %v", d, err)
		}
	}
}

func TestLimiter_RejectsBeyondMaxWait(t *testing.T) {
	l := NewLimiter(LimiterConfig{RequestsPerMinute: 1, Burst: 2, MaxWait: 0})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := l.Wait(ctx); err != nil {
			t.Fatalf("burst request %d rejected: %v", i, err)
		}
	}

	_, err := l.Wait(ctx)
	if !errors.Is(err, domain.ErrRateLimitExceeded) {
		t.Fatalf("expected ErrRateLimitExceeded, got %v", err)
	}
	if got := l.Usage().Rejected; got != 1 {
		t.Errorf("expected 1 rejection, got %d", got)
	}
}

func TestLimiter_DefersWithinMaxWait(t *testing.T) {
	// 600/min = one token every 100ms.
	l := NewLimiter(LimiterConfig{RequestsPerMinute: 600, Burst: 1, MaxWait: time.Second})
	ctx := context.Background()

	if _, err := l.Wait(ctx); err != nil {
		t.Fatalf("first request rejected: %v", err)
	}
	waited, err := l.Wait(ctx)
	if err != nil {
		t.Fatalf("second request should be deferred, got %v", err)
	}
	if waited <= 0 || waited > 200*time.Millisecond {
		t.Errorf("unexpected deferral %v", waited)
	}
	if got := l.Usage().Deferred; got != 1 {
		t.Errorf("expected 1 deferral, got %d", got)
	}
}

func TestLimiter_CancelledWait(t *testing.T) {
	l := NewLimiter(LimiterConfig{RequestsPerMinute: 1, Burst: 1, MaxWait: time.Hour})
	_, _ = l.Wait(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestLimiter_DailyQuota(t *testing.T) {
	l := NewLimiter(LimiterConfig{DailyQuota: 2})
	ctx := context.Background()

	_, _ = l.Wait(ctx)
	_, _ = l.Wait(ctx)
	if _, err := l.Wait(ctx); !errors.Is(err, domain.ErrRateLimitExceeded) {
		t.Fatalf("expected quota rejection, got %v", err)
	}

	usage := l.Usage()
	if usage.DailyUsed != 2 || usage.DailyQuota != 2 {
		t.Errorf("unexpected usage %+v", usage)
	}

	l.now = func() time.Time { return usage.NextResetAt.Add(time.Second) }
	if _, err := l.Wait(ctx); err != nil {
		t.Errorf("quota should reset at midnight, got %v", err)
	}
}
