package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNetwork marks an unreachable or timed-out source.
	ErrNetwork = errors.New("network error")
	// ErrParse marks a malformed source payload.
	ErrParse = errors.New("parse error")
	// ErrRateLimitExceeded is returned when a request cannot be paced within bounds.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrCircuitOpen is returned while a source's breaker rejects calls.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrValidation marks invalid caller input.
	ErrValidation = errors.New("validation error")
	// ErrCalculation marks an invariant violation inside the calculator.
	ErrCalculation = errors.New("calculation error")
)

// SourceError wraps a failure of a specific source with its taxonomy kind.
type SourceError struct {
	SourceID string
	Kind     error
	Err      error
}

// NewNetworkError wraps err as a network failure of sourceID.
func NewNetworkError(sourceID string, err error) *SourceError {
	return &SourceError{SourceID: sourceID, Kind: ErrNetwork, Err: err}
}

// NewParseError wraps err as a parse failure of sourceID.
func NewParseError(sourceID string, err error) *SourceError {
	return &SourceError{SourceID: sourceID, Kind: ErrParse, Err: err}
}

func (e *SourceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("source %s: %v", e.SourceID, e.Kind)
	}
	return fmt.Sprintf("source %s: %v: %v", e.SourceID, e.Kind, e.Err)
}

func (e *SourceError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// ValidationError reports malformed caller input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// CalculationError reports an invariant violation with the breakdown that produced it.
type CalculationError struct {
	Stat      string
	Value     float64
	Breakdown map[string]float64
}

func (e *CalculationError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "calculation error: %s resolved to %g", e.Stat, e.Value)
	if len(e.Breakdown) > 0 {
		fmt.Fprintf(&sb, " (%d breakdown entries)", len(e.Breakdown))
	}
	return sb.String()
}

func (e *CalculationError) Is(target error) bool {
	return target == ErrCalculation
}
