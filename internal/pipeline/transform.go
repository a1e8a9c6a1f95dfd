package pipeline

import (
	"fmt"

	"greentwin/internal/config"
	"greentwin/internal/model"
)

// Deriver computes the per-reading sustainability fields. It has no state.
type Deriver struct {
	EmissionFactor float64 // kg CO2e per kWh
	UnitPrice      float64 // major currency units per kWh
}

func NewDeriver(cfg config.DeriveConfig) Deriver {
	return Deriver{EmissionFactor: cfg.EmissionFactor, UnitPrice: cfg.UnitPrice}
}

// Derive treats power_kw as sustained for one second.
func (d Deriver) Derive(r model.Reading) model.DerivedMetrics {
	energy := r.PowerKW / 3600
	return model.DerivedMetrics{
		EnergyKWh:     energy,
		CO2Grams:      energy * d.EmissionFactor * 1000,
		CostMinorUnit: energy * d.UnitPrice * 100,
	}
}

// FeatureVector extracts the configured model features from a reading
func FeatureVector(r model.Reading, features []string) ([]float64, error) {
	vec := make([]float64, len(features))
	for i, f := range features {
		switch f {
		case "current_amp":
			vec[i] = r.CurrentAmp
		case "power_kw":
			vec[i] = r.PowerKW
		default:
			return nil, fmt.Errorf("unknown feature %q", f)
		}
	}
	return vec, nil
}
