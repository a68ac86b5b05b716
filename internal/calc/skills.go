package calc

import (
	"math"
	"strings"

	"github.com/vietddude/buildforge/internal/core/domain"
)

// GenericSkill is used for skills missing from the table.
const GenericSkill = "generic"

// Skill holds the base numbers of an active skill.
type Skill struct {
	Name string
	// BaseDamage is the hit damage at level 1.
	BaseDamage float64
	// DamageGrowth is the fractional base damage gained per level above 1.
	DamageGrowth   float64
	CastsPerSecond float64
}

// SkillTable maps normalized skill names to their numbers.
type SkillTable map[string]Skill

// DefaultSkills returns the built-in skill table.
func DefaultSkills() SkillTable {
	return SkillTable{
		GenericSkill: {Name: GenericSkill, BaseDamage: 10, DamageGrowth: 0.05, CastsPerSecond: 1.0},
		"fireball":   {Name: "fireball", BaseDamage: 12, DamageGrowth: 0.09, CastsPerSecond: 1.33},
		"arc":        {Name: "arc", BaseDamage: 8, DamageGrowth: 0.08, CastsPerSecond: 1.25},
		"ice_nova":   {Name: "ice_nova", BaseDamage: 11, DamageGrowth: 0.08, CastsPerSecond: 1.4},
		"cyclone":    {Name: "cyclone", BaseDamage: 9, DamageGrowth: 0.07, CastsPerSecond: 3.33},
	}
}

// SkillTableFromPayload overlays the "skills" object of a merged dataset on
// the built-in table. Entries with missing or invalid numbers are ignored.
func SkillTableFromPayload(data domain.Payload) SkillTable {
	table := DefaultSkills()

	raw, ok := data["skills"].(map[string]any)
	if !ok {
		return table
	}
	for name, v := range raw {
		fields, ok := v.(map[string]any)
		if !ok {
			continue
		}
		key := normalizeSkill(name)
		skill := table[key]
		skill.Name = key

		if !readNumber(fields, "base_damage", &skill.BaseDamage) ||
			!readNumber(fields, "damage_growth", &skill.DamageGrowth) ||
			!readNumber(fields, "casts_per_second", &skill.CastsPerSecond) {
			continue
		}
		if skill.BaseDamage < 0 || skill.DamageGrowth < 0 || skill.CastsPerSecond <= 0 {
			continue
		}
		table[key] = skill
	}
	return table
}

// Lookup returns the skill for name, or the generic entry and false.
func (t SkillTable) Lookup(name string) (Skill, bool) {
	if s, ok := t[normalizeSkill(name)]; ok {
		return s, true
	}
	if s, ok := t[GenericSkill]; ok {
		return s, false
	}
	return DefaultSkills()[GenericSkill], false
}

// readNumber copies fields[key] into dst when it is a finite number. A
// missing key keeps dst and reports true.
func readNumber(fields map[string]any, key string, dst *float64) bool {
	v, ok := fields[key]
	if !ok {
		return true
	}
	f, ok := v.(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return false
	}
	*dst = f
	return true
}

func normalizeSkill(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.Join(strings.Fields(name), "_")
}
