package cli

import (
	"errors"
	"strings"
	"testing"

	"github.com/vietddude/buildforge/internal/calc"
	"github.com/vietddude/buildforge/internal/core/domain"
)

func TestCalculate(t *testing.T) {
	c := calc.New(nil, calc.DefaultParams())

	stats, err := calculate(strings.NewReader(`{"level": 85, "main_skill": "arc",
		"items": [{"slot": "ring", "modifiers": [{"stat": "lightning_resistance", "kind": "flat", "value": 90}]}]}`), c)
	if err != nil {
		t.Fatalf("calculate failed: %v", err)
	}
	if stats.Defenses.LightningResistance != 80 {
		t.Errorf("expected capped lightning resistance, got %v", stats.Defenses.LightningResistance)
	}

	if _, err := calculate(strings.NewReader(`{"level": -1, "main_skill": "arc"}`), c); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
	if _, err := calculate(strings.NewReader(`{"level": 10, "main_skill": "arc", "mana": 1}`), c); err == nil {
		t.Error("expected decode error for unknown field")
	}
}

func TestLogLevel(t *testing.T) {
	tests := map[string]string{
		"debug": "DEBUG",
		"warn":  "WARN",
		"error": "ERROR",
		"":      "INFO",
		"loud":  "INFO",
	}
	for in, want := range tests {
		if got := logLevel(in).String(); got != want {
			t.Errorf("logLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
