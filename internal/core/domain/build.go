package domain

// Stat names a character statistic a modifier applies to.
type Stat string

const (
	StatLife                Stat = "life"
	StatEnergyShield        Stat = "energy_shield"
	StatFireResistance      Stat = "fire_resistance"
	StatColdResistance      Stat = "cold_resistance"
	StatLightningResistance Stat = "lightning_resistance"
	StatChaosResistance     Stat = "chaos_resistance"
	StatAllResistances      Stat = "all_elemental_resistances"
	StatDamage              Stat = "damage"
	StatCastSpeed           Stat = "cast_speed"
	StatPenetration         Stat = "penetration"
)

// ModifierKind selects how a modifier stacks.
type ModifierKind string

const (
	// ModFlat adds a fixed amount before percentage scaling.
	ModFlat ModifierKind = "flat"
	// ModIncreased sums additively with other increases/reductions of the same stat.
	ModIncreased ModifierKind = "increased"
	// ModMore multiplies independently (negative values are "less").
	ModMore ModifierKind = "more"
)

// Modifier is a single stat modifier.
type Modifier struct {
	Stat  Stat         `json:"stat"`
	Kind  ModifierKind `json:"kind"`
	Value float64      `json:"value"`
}

// Item is an equipped item.
type Item struct {
	Slot      string     `json:"slot"`
	Name      string     `json:"name,omitempty"`
	Modifiers []Modifier `json:"modifiers"`
}

// SupportGem modifies the main skill. Stat defaults to damage.
type SupportGem struct {
	Name  string       `json:"name"`
	Kind  ModifierKind `json:"kind"`
	Stat  Stat         `json:"stat,omitempty"`
	Value float64      `json:"value"`
}

// PassiveBonus is an allocated passive tree bonus.
type PassiveBonus struct {
	Name      string     `json:"name"`
	Modifiers []Modifier `json:"modifiers"`
}

// BuildConfig is the calculator input. Level and MainSkill are required.
type BuildConfig struct {
	Class       string         `json:"class,omitempty"`
	Level       int            `json:"level"`
	MainSkill   string         `json:"main_skill"`
	Items       []Item         `json:"items,omitempty"`
	SupportGems []SupportGem   `json:"support_gems,omitempty"`
	Passives    []PassiveBonus `json:"passive_bonuses,omitempty"`
}
