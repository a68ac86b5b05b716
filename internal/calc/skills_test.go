package calc

import (
	"testing"

	"github.com/vietddude/buildforge/internal/core/domain"
)

func TestSkillTableFromPayload(t *testing.T) {
	data := domain.Payload{
		"skills": map[string]any{
			"Fireball":      map[string]any{"base_damage": 20.0},
			"Spark":         map[string]any{"base_damage": 5.0, "damage_growth": 0.1, "casts_per_second": 1.6},
			"broken":        map[string]any{"base_damage": "lots"},
			"negative":      map[string]any{"base_damage": -1.0, "casts_per_second": 1.0},
			"no_cast_rate":  map[string]any{"base_damage": 3.0},
			"not_an_object": 42.0,
		},
	}

	table := SkillTableFromPayload(data)

	fireball, ok := table.Lookup("fireball")
	if !ok || fireball.BaseDamage != 20 || fireball.CastsPerSecond != 1.33 {
		t.Errorf("expected fireball overridden on top of defaults, got %+v", fireball)
	}
	if spark, ok := table.Lookup("spark"); !ok || spark.CastsPerSecond != 1.6 {
		t.Errorf("expected new skill spark, got %+v ok=%v", spark, ok)
	}
	for _, name := range []string{"broken", "negative", "no_cast_rate", "not_an_object"} {
		if _, ok := table.Lookup(name); ok {
			t.Errorf("invalid entry %s should be ignored", name)
		}
	}
}

func TestSkillTable_LookupNormalizes(t *testing.T) {
	table := DefaultSkills()
	if s, ok := table.Lookup("  Ice   Nova "); !ok || s.Name != "ice_nova" {
		t.Errorf("expected ice_nova, got %+v ok=%v", s, ok)
	}
	if s, ok := table.Lookup("unknown"); ok || s.Name != GenericSkill {
		t.Errorf("expected generic fallback, got %+v ok=%v", s, ok)
	}
}

func TestSkillTableFromPayload_NoSkills(t *testing.T) {
	if got := len(SkillTableFromPayload(domain.Payload{})); got != len(DefaultSkills()) {
		t.Errorf("expected defaults only, got %d skills", got)
	}
}
