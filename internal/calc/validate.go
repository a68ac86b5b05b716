package calc

import (
	"fmt"
	"math"
	"strings"

	"github.com/vietddude/buildforge/internal/core/domain"
)

var knownStats = map[domain.Stat]struct{}{
	domain.StatLife:                {},
	domain.StatEnergyShield:        {},
	domain.StatFireResistance:      {},
	domain.StatColdResistance:      {},
	domain.StatLightningResistance: {},
	domain.StatChaosResistance:     {},
	domain.StatAllResistances:      {},
	domain.StatDamage:              {},
	domain.StatCastSpeed:           {},
	domain.StatPenetration:         {},
}

// flatOnly stats are expressed in percentage points and only stack flat.
var flatOnly = map[domain.Stat]struct{}{
	domain.StatFireResistance:      {},
	domain.StatColdResistance:      {},
	domain.StatLightningResistance: {},
	domain.StatChaosResistance:     {},
	domain.StatAllResistances:      {},
	domain.StatPenetration:         {},
}

// Validate checks cfg without computing anything.
func Validate(cfg domain.BuildConfig) error {
	if cfg.Level < MinLevel || cfg.Level > MaxLevel {
		return &domain.ValidationError{
			Field:  "level",
			Reason: fmt.Sprintf("must be between %d and %d, got %d", MinLevel, MaxLevel, cfg.Level),
		}
	}
	if strings.TrimSpace(cfg.MainSkill) == "" {
		return &domain.ValidationError{Field: "main_skill", Reason: "must not be empty"}
	}

	for i, item := range cfg.Items {
		for j, m := range item.Modifiers {
			if err := validateModifier(fmt.Sprintf("items[%d].modifiers[%d]", i, j), m.Stat, m.Kind, m.Value); err != nil {
				return err
			}
		}
	}
	for i, gem := range cfg.SupportGems {
		stat := gem.Stat
		if stat == "" {
			stat = domain.StatDamage
		}
		if err := validateModifier(fmt.Sprintf("support_gems[%d]", i), stat, gem.Kind, gem.Value); err != nil {
			return err
		}
	}
	for i, p := range cfg.Passives {
		for j, m := range p.Modifiers {
			if err := validateModifier(fmt.Sprintf("passive_bonuses[%d].modifiers[%d]", i, j), m.Stat, m.Kind, m.Value); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateModifier(field string, stat domain.Stat, kind domain.ModifierKind, value float64) error {
	if _, ok := knownStats[stat]; !ok {
		return &domain.ValidationError{Field: field + ".stat", Reason: fmt.Sprintf("unknown stat %q", stat)}
	}
	switch kind {
	case domain.ModFlat, domain.ModIncreased, domain.ModMore:
	default:
		return &domain.ValidationError{Field: field + ".kind", Reason: fmt.Sprintf("unknown modifier kind %q", kind)}
	}
	if _, ok := flatOnly[stat]; ok && kind != domain.ModFlat {
		return &domain.ValidationError{Field: field + ".kind", Reason: fmt.Sprintf("%s only accepts flat modifiers", stat)}
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return &domain.ValidationError{Field: field + ".value", Reason: "must be a finite number"}
	}
	return nil
}
