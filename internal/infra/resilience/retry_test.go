package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/vietddude/buildforge/internal/core/domain"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err    error
		expect ErrorAction
	}{
		{errors.New("429 Too Many Requests"), ActionGiveUp},
		{errors.New("project rate limit exceeded"), ActionGiveUp},
		{errors.New("quota exceeded"), ActionGiveUp},
		{errors.New("403 Forbidden"), ActionGiveUp},
		{domain.ErrRateLimitExceeded, ActionGiveUp},
		{domain.NewParseError("market", errors.New("unexpected EOF")), ActionFatal},
		{context.Canceled, ActionFatal},
		{domain.NewNetworkError("market", errors.New("connection reset by peer")), ActionRetry},
		{errors.New("timeout"), ActionRetry},
		{errors.New("500 Internal Server Error"), ActionRetry},
	}

	for _, tt := range tests {
		if got := ClassifyError(tt.err); got != tt.expect {
			t.Errorf("ClassifyError(%q) = %v, want %v", tt.err, got, tt.expect)
		}
	}
}

func TestRetry_StopsOnSuccess(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond}, func(context.Context) error {
		attempts++
		if attempts < 2 {
			return errors.New("connection reset")
		}
		return nil
	})
	if err != nil || attempts != 2 {
		t.Errorf("expected success on attempt 2, got err=%v attempts=%d", err, attempts)
	}
}

func TestRetry_FatalIsNotRetried(t *testing.T) {
	attempts := 0
	parseErr := domain.NewParseError("staticdb", fmt.Errorf("bad json"))
	err := Retry(context.Background(), RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond}, func(context.Context) error {
		attempts++
		return parseErr
	})
	if !errors.Is(err, domain.ErrParse) || attempts != 1 {
		t.Errorf("expected single attempt with parse error, got err=%v attempts=%d", err, attempts)
	}
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond}, func(context.Context) error {
		attempts++
		return domain.NewNetworkError("market", errors.New("no route to host"))
	})
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
	if !errors.Is(err, domain.ErrNetwork) {
		t.Errorf("expected wrapped network error, got %v", err)
	}
}

func TestCalculateBackoff(t *testing.T) {
	cfg := RetryConfig{InitialDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond, BackoffMultiple: 2}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond}
	for attempt, w := range want {
		if got := calculateBackoff(attempt, cfg); got != w {
			t.Errorf("attempt %d: expected %v, got %v", attempt, w, got)
		}
	}
}
