package model

import "time"

// Reading represents one sensor sample for a machine
type Reading struct {
	MachineID  string    `json:"machine_id"`
	CurrentAmp float64   `json:"current_amp"`
	PowerKW    float64   `json:"power_kw"`
	Timestamp  time.Time `json:"timestamp"`
}

// DerivedMetrics holds the sustainability fields computed once per reading
type DerivedMetrics struct {
	EnergyKWh     float64 `json:"energy_kwh_increment"`
	CO2Grams      float64 `json:"co2_grams_increment"`
	CostMinorUnit float64 `json:"cost_minor_unit_increment"`
}

// Verdict is the anomaly classification paired 1:1 with the reading that produced it.
// Evaluated is false for the placeholder emitted while the machine is still training.
type Verdict struct {
	MachineID string    `json:"machine_id"`
	Timestamp time.Time `json:"timestamp"`
	IsAnomaly bool      `json:"is_anomaly"`
	Evaluated bool      `json:"evaluated"`
	Score     float64   `json:"score,omitempty"`
}

// AnomalyFlag returns the 0|1 field value written to the sink
func (v Verdict) AnomalyFlag() int {
	if v.IsAnomaly {
		return 1
	}
	return 0
}

// PlaceholderVerdict is the fixed "not yet evaluated" verdict emitted during training
func PlaceholderVerdict(r Reading) Verdict {
	return Verdict{MachineID: r.MachineID, Timestamp: r.Timestamp}
}
