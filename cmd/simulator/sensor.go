package main

import (
	"math/rand"
	"time"

	"greentwin/pkg/utils"
)

const (
	normalMeanCurrent  = 12.0
	normalStdCurrent   = 0.5
	anomalyMeanCurrent = 18.0
	anomalyStdCurrent  = 2.0
	meanVoltage        = 220.0
	stdVoltage         = 1.0
	powerFactor        = 0.8

	// isoLayout matches a naive UTC ISO-8601 timestamp with microseconds
	isoLayout = "2006-01-02T15:04:05.000000"
)

// Payload is one synthetic sensor message
type Payload struct {
	Timestamp   string  `json:"timestamp"`
	MachineID   string  `json:"machine_id"`
	CurrentAmp  float64 `json:"current_amp"`
	VoltageV    float64 `json:"voltage_v"`
	PowerKW     float64 `json:"power_kw"`
	StatusLabel string  `json:"status_label"`
}

// Sensor generates readings for one machine
type Sensor struct {
	machineID   string
	anomalyRate float64
	rng         *rand.Rand
	now         func() time.Time
}

func NewSensor(machineID string, anomalyRate float64, seed int64) *Sensor {
	return &Sensor{
		machineID:   machineID,
		anomalyRate: anomalyRate,
		rng:         rand.New(rand.NewSource(seed)),
		now:         time.Now,
	}
}

// Next draws the next reading. The status label is ground truth for offline evaluation.
func (s *Sensor) Next() Payload {
	anomalous := s.rng.Float64() < s.anomalyRate

	status := "NORMAL"
	current := s.gauss(normalMeanCurrent, normalStdCurrent)
	if anomalous {
		status = "ANOMALY"
		current = s.gauss(anomalyMeanCurrent, anomalyStdCurrent)
	}
	voltage := s.gauss(meanVoltage, stdVoltage)
	power := voltage * current * powerFactor / 1000

	return Payload{
		Timestamp:   s.now().UTC().Format(isoLayout),
		MachineID:   s.machineID,
		CurrentAmp:  utils.Round(current, 2),
		VoltageV:    utils.Round(voltage, 2),
		PowerKW:     utils.Round(power, 3),
		StatusLabel: status,
	}
}

func (s *Sensor) gauss(mean, std float64) float64 {
	return mean + std*s.rng.NormFloat64()
}
