package calc

// Level bounds accepted by the calculator.
const (
	MinLevel = 1
	MaxLevel = 100
)

// Params are the game constants the formulas depend on.
type Params struct {
	// ResistanceCap is the maximum of any resistance.
	ResistanceCap float64 `yaml:"resistance_cap"`
	// ResistanceFloor is the minimum of any resistance.
	ResistanceFloor float64 `yaml:"resistance_floor"`
	// ElementalBaseline is the starting fire/cold/lightning resistance.
	ElementalBaseline float64 `yaml:"elemental_baseline"`
	// ChaosBaseline is the starting chaos resistance.
	ChaosBaseline float64 `yaml:"chaos_baseline"`
	// EnemyResistance is the resistance of the reference target.
	EnemyResistance float64 `yaml:"enemy_resistance"`
	BaseLife        float64 `yaml:"base_life"`
	LifePerLevel    float64 `yaml:"life_per_level"`
}

// DefaultParams returns the reference constants.
func DefaultParams() Params {
	return Params{
		ResistanceCap:     80,
		ResistanceFloor:   -100,
		ElementalBaseline: 0,
		ChaosBaseline:     -40,
		EnemyResistance:   30,
		BaseLife:          38,
		LifePerLevel:      12,
	}
}
