package model

import "time"

// MetricsRecord is the raw/derived metrics record written to the time-series sink
type MetricsRecord struct {
	MachineID   string         `json:"machine_id"`
	CurrentAmp  float64        `json:"current"`
	PowerKW     float64        `json:"power_kw"`
	Derived     DerivedMetrics `json:"derived"`
	ProcessedAt time.Time      `json:"processed_at"`
}

// VerdictRecord is the anomaly record written to the time-series sink
type VerdictRecord struct {
	MachineID   string    `json:"machine_id"`
	Verdict     Verdict   `json:"verdict"`
	ProcessedAt time.Time `json:"processed_at"`
}

// MachineSummary represents running sustainability totals for one machine
type MachineSummary struct {
	MachineID      string    `json:"machine_id"`
	Readings       int64     `json:"readings"`
	Anomalies      int64     `json:"anomalies"`
	EnergyKWh      float64   `json:"energy_kwh"`
	CO2Grams       float64   `json:"co2_grams"`
	CostMinorUnits float64   `json:"cost_minor_units"`
	AvgPowerKW     float64   `json:"avg_power_kw"`
	MinCurrentAmp  float64   `json:"min_current_amp"`
	MaxCurrentAmp  float64   `json:"max_current_amp"`
	FirstSeen      time.Time `json:"first_seen"`
	LastSeen       time.Time `json:"last_seen"`
}

// CO2Kilograms returns the accumulated footprint in kg CO2e
func (s MachineSummary) CO2Kilograms() float64 {
	return s.CO2Grams / 1000
}

// RawMessage is one undecoded message taken from a source. File replay sources
// that already hold decoded columns set Fields instead of Payload.
type RawMessage struct {
	Payload    []byte
	Fields     map[string]interface{}
	ReceivedAt time.Time
	Origin     string
}
