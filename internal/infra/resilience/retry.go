package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/vietddude/buildforge/internal/core/domain"
)

// RetryConfig defines retry behavior for a single source fetch.
type RetryConfig struct {
	MaxAttempts     int           `yaml:"max_attempts"`
	InitialDelay    time.Duration `yaml:"initial_delay"`
	MaxDelay        time.Duration `yaml:"max_delay"`
	BackoffMultiple float64       `yaml:"backoff_multiple"`
}

// DefaultRetryConfig provides sensible defaults.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:     2,
	InitialDelay:    200 * time.Millisecond,
	MaxDelay:        2 * time.Second,
	BackoffMultiple: 2.0,
}

// ErrorAction determines how to handle an error.
type ErrorAction int

const (
	ActionRetry  ErrorAction = iota // transient, try again
	ActionGiveUp                    // source is throttling us, stop and fall back
	ActionFatal                     // retrying cannot help
)

// ClassifyError determines the action for a given fetch error.
func ClassifyError(err error) ErrorAction {
	if err == nil {
		return ActionRetry // Should not happen
	}

	if errors.Is(err, domain.ErrParse) || errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, context.Canceled) {
		return ActionFatal
	}
	if errors.Is(err, domain.ErrRateLimitExceeded) || errors.Is(err, domain.ErrCircuitOpen) {
		return ActionGiveUp
	}

	s := strings.ToLower(err.Error())
	if strings.Contains(s, "429") || strings.Contains(s, "too many requests") ||
		strings.Contains(s, "403") || strings.Contains(s, "forbidden") ||
		strings.Contains(s, "rate limit") || strings.Contains(s, "quota") ||
		strings.Contains(s, "throttl") {
		return ActionGiveUp
	}

	// Network, 5xx, timeouts
	return ActionRetry
}

// Retry runs fn until it succeeds, returns a non-retryable error, or the
// attempts are exhausted. Backoff is exponential and capped at MaxDelay.
func Retry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if ClassifyError(err) != ActionRetry {
			return err
		}
		if attempt == cfg.MaxAttempts-1 {
			break
		}

		timer := time.NewTimer(calculateBackoff(attempt, cfg))
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}
	}

	if cfg.MaxAttempts == 1 {
		return lastErr
	}
	return fmt.Errorf("failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
}

func calculateBackoff(attempt int, cfg RetryConfig) time.Duration {
	multiple := cfg.BackoffMultiple
	if multiple <= 0 {
		multiple = 2.0
	}
	delay := float64(cfg.InitialDelay) * math.Pow(multiple, float64(attempt))
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	return time.Duration(delay)
}
