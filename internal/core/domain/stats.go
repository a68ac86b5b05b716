package domain

// DPSStats holds offensive output.
type DPSStats struct {
	BaseDamage float64            `json:"base_damage"`
	TotalDPS   float64            `json:"total_dps"`
	Breakdown  map[string]float64 `json:"breakdown"`
}

// DefenseStats holds resistances after clamping.
type DefenseStats struct {
	FireResistance      float64            `json:"fire_resistance"`
	ColdResistance      float64            `json:"cold_resistance"`
	LightningResistance float64            `json:"lightning_resistance"`
	ChaosResistance     float64            `json:"chaos_resistance"`
	Breakdown           map[string]float64 `json:"breakdown"`
}

// SurvivabilityStats holds pools and effective health.
type SurvivabilityStats struct {
	TotalEnergyShield float64            `json:"total_energy_shield"`
	TotalLife         float64            `json:"total_life"`
	TotalEHP          float64            `json:"total_ehp"`
	Breakdown         map[string]float64 `json:"breakdown"`
}

// BuildStats is the calculator output.
type BuildStats struct {
	DPS           DPSStats           `json:"dps"`
	Defenses      DefenseStats       `json:"defenses"`
	Survivability SurvivabilityStats `json:"survivability"`
}
