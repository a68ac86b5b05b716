// Package calc derives character statistics from a build configuration.
//
// Calculate is a pure function of its input and the calculator's skill
// table and parameters: no I/O, no shared mutable state, and modifiers are
// applied in slice order so identical input yields bit-identical output.
//
// Stacking rules:
//
//	hit  = (base + Σflat) × (1 + Σincreased/100) × Π(1 + more/100)
//	dps  = hit × casts/s × (1 − (enemy_res − penetration)/100)
//	es   = Σflat(items) × (1 + Σincreased/100) × Π(more) + Σflat(passives)
//	res  = clamp(baseline + Σflat, floor, cap)
//	ehp  = (life + es) / (1 − avg(elemental res)/100)
package calc

import (
	"maps"
	"math"

	"github.com/vietddude/buildforge/internal/core/domain"
)

// Calculator computes BuildStats. It is safe for concurrent use.
type Calculator struct {
	skills SkillTable
	params Params
}

// New creates a calculator. A nil table selects DefaultSkills and a zero
// ResistanceCap selects DefaultParams.
func New(skills SkillTable, params Params) *Calculator {
	if skills == nil {
		skills = DefaultSkills()
	}
	if params.ResistanceCap == 0 {
		params = DefaultParams()
	}
	return &Calculator{skills: skills, params: params}
}

// WithSkills returns a calculator sharing the parameters but using skills.
func (c *Calculator) WithSkills(skills SkillTable) *Calculator {
	return New(skills, c.params)
}

// Params returns the calculator parameters.
func (c *Calculator) Params() Params {
	return c.params
}

// Calculate validates cfg and derives its statistics. Invalid input yields
// a *domain.ValidationError before any arithmetic; a negative or non-finite
// result yields a *domain.CalculationError with the breakdown so far.
func (c *Calculator) Calculate(cfg domain.BuildConfig) (*domain.BuildStats, error) {
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	l := collect(cfg)

	dps, err := c.dps(cfg, l)
	if err != nil {
		return nil, err
	}
	defenses := c.defenses(l)
	survivability, err := c.survivability(cfg, l, defenses)
	if err != nil {
		return nil, err
	}

	return &domain.BuildStats{
		DPS:           *dps,
		Defenses:      defenses,
		Survivability: *survivability,
	}, nil
}

func (c *Calculator) dps(cfg domain.BuildConfig, l *ledger) (*domain.DPSStats, error) {
	skill, known := c.skills.Lookup(cfg.MainSkill)
	levelMultiplier := 1 + skill.DamageGrowth*float64(cfg.Level-1)
	base := skill.BaseDamage * levelMultiplier

	dmg := combine(domain.StatDamage, l.items, l.passives, l.gems)
	unscaled := base + dmg.flat
	increased := 1 + dmg.increased/100
	hit := unscaled * increased * dmg.more

	speed := combine(domain.StatCastSpeed, l.items, l.passives, l.gems)
	unscaledCasts := skill.CastsPerSecond + speed.flat
	increasedCasts := 1 + speed.increased/100
	casts := unscaledCasts * increasedCasts * speed.more

	pen := combine(domain.StatPenetration, l.items, l.passives, l.gems).flat
	penAdjustment := (c.params.EnemyResistance - pen) / 100
	penFactor := 1 - penAdjustment
	total := hit * casts * penFactor

	breakdown := map[string]float64{
		"skill_base_damage":         skill.BaseDamage,
		"level_multiplier":          levelMultiplier,
		"base_damage":               base,
		"flat_added":                dmg.flat,
		"damage_before_scaling":     unscaled,
		"increased_percent":         dmg.increased,
		"increased_multiplier":      increased,
		"more_multiplier":           dmg.more,
		"hit_damage":                hit,
		"cast_speed_before_scaling": unscaledCasts,
		"cast_speed_increased":      increasedCasts,
		"cast_speed_more":           speed.more,
		"casts_per_second":          casts,
		"enemy_resistance":          c.params.EnemyResistance,
		"penetration":               pen,
		"penetration_adjustment":    penAdjustment,
		"penetration_damage_factor": penFactor,
		"total_dps":                 total,
	}
	if !known {
		breakdown["generic_skill"] = 1
	}

	if err := checkNonNegative(breakdown,
		"damage_before_scaling",
		"increased_multiplier",
		"more_multiplier",
		"hit_damage",
		"cast_speed_before_scaling",
		"cast_speed_increased",
		"cast_speed_more",
		"casts_per_second",
		"penetration_damage_factor",
		"total_dps",
	); err != nil {
		return nil, err
	}

	return &domain.DPSStats{
		BaseDamage: base,
		TotalDPS:   total,
		Breakdown:  breakdown,
	}, nil
}

func (c *Calculator) defenses(l *ledger) domain.DefenseStats {
	breakdown := make(map[string]float64, 8)
	resolve := func(stat domain.Stat, baseline float64) float64 {
		raw := baseline + combine(stat, l.items, l.passives).flat
		breakdown[string(stat)+"_uncapped"] = raw
		return clamp(raw, c.params.ResistanceFloor, c.params.ResistanceCap)
	}

	return domain.DefenseStats{
		FireResistance:      resolve(domain.StatFireResistance, c.params.ElementalBaseline),
		ColdResistance:      resolve(domain.StatColdResistance, c.params.ElementalBaseline),
		LightningResistance: resolve(domain.StatLightningResistance, c.params.ElementalBaseline),
		ChaosResistance:     resolve(domain.StatChaosResistance, c.params.ChaosBaseline),
		Breakdown:           breakdown,
	}
}

func (c *Calculator) survivability(cfg domain.BuildConfig, l *ledger, def domain.DefenseStats) (*domain.SurvivabilityStats, error) {
	// Passive flat ES is added after the percentage step.
	itemES := of(l.items, domain.StatEnergyShield)
	passiveES := of(l.passives, domain.StatEnergyShield)
	esIncreased := itemES.increased + passiveES.increased
	esMore := itemES.more * passiveES.more
	esIncreasedMultiplier := 1 + esIncreased/100
	esScaled := itemES.flat * esIncreasedMultiplier * esMore
	es := esScaled + passiveES.flat

	life := combine(domain.StatLife, l.items, l.passives)
	lifeBase := c.params.BaseLife + c.params.LifePerLevel*float64(cfg.Level)
	lifeUnscaled := lifeBase + life.flat
	lifeIncreasedMultiplier := 1 + life.increased/100
	totalLife := lifeUnscaled * lifeIncreasedMultiplier * life.more

	avgRes := (def.FireResistance + def.ColdResistance + def.LightningResistance) / 3
	mitigation := 1 / (1 - avgRes/100)
	ehp := (totalLife + es) * mitigation

	breakdown := map[string]float64{
		"es_flat_items":             itemES.flat,
		"es_increased_percent":      esIncreased,
		"es_increased_multiplier":   esIncreasedMultiplier,
		"es_more_multiplier":        esMore,
		"es_after_scaling":          esScaled,
		"es_flat_passives":          passiveES.flat,
		"total_energy_shield":       es,
		"life_base":                 lifeBase,
		"life_flat":                 life.flat,
		"life_before_scaling":       lifeUnscaled,
		"life_increased_percent":    life.increased,
		"life_increased_multiplier": lifeIncreasedMultiplier,
		"life_more_multiplier":      life.more,
		"total_life":                totalLife,
		"avg_elemental_resistance":  avgRes,
		"mitigation_multiplier":     mitigation,
		"total_ehp":                 ehp,
	}

	if err := checkNonNegative(breakdown,
		"es_flat_items",
		"es_increased_multiplier",
		"es_more_multiplier",
		"es_after_scaling",
		"total_energy_shield",
		"life_before_scaling",
		"life_increased_multiplier",
		"life_more_multiplier",
		"total_life",
		"mitigation_multiplier",
		"total_ehp",
	); err != nil {
		return nil, err
	}

	return &domain.SurvivabilityStats{
		TotalEnergyShield: es,
		TotalLife:         totalLife,
		TotalEHP:          ehp,
		Breakdown:         breakdown,
	}, nil
}

// checkNonNegative walks stats in evaluation order and reports the first one
// that is negative or non-finite.
func checkNonNegative(breakdown map[string]float64, stats ...string) error {
	for _, stat := range stats {
		v := breakdown[stat]
		if v < 0 || !finite(v) {
			return &domain.CalculationError{Stat: stat, Value: v, Breakdown: maps.Clone(breakdown)}
		}
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
