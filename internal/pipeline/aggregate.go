package pipeline

import (
	"sort"
	"sync"

	"greentwin/internal/model"
)

// Aggregator keeps running sustainability totals per machine
type Aggregator struct {
	mu        sync.RWMutex
	summaries map[string]*model.MachineSummary
}

func NewAggregator() *Aggregator {
	return &Aggregator{summaries: make(map[string]*model.MachineSummary)}
}

// Observe folds one processed reading and its verdict into the machine's totals
func (a *Aggregator) Observe(rec model.MetricsRecord, verdict model.Verdict) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.summaries[rec.MachineID]
	if !ok {
		s = &model.MachineSummary{
			MachineID:     rec.MachineID,
			MinCurrentAmp: rec.CurrentAmp,
			MaxCurrentAmp: rec.CurrentAmp,
			FirstSeen:     rec.ProcessedAt,
		}
		a.summaries[rec.MachineID] = s
	}

	s.Readings++
	if verdict.IsAnomaly {
		s.Anomalies++
	}
	s.EnergyKWh += rec.Derived.EnergyKWh
	s.CO2Grams += rec.Derived.CO2Grams
	s.CostMinorUnits += rec.Derived.CostMinorUnit
	// incremental mean
	s.AvgPowerKW += (rec.PowerKW - s.AvgPowerKW) / float64(s.Readings)
	if rec.CurrentAmp < s.MinCurrentAmp {
		s.MinCurrentAmp = rec.CurrentAmp
	}
	if rec.CurrentAmp > s.MaxCurrentAmp {
		s.MaxCurrentAmp = rec.CurrentAmp
	}
	s.LastSeen = rec.ProcessedAt
}

// Summary returns a copy of one machine's totals
func (a *Aggregator) Summary(machineID string) (model.MachineSummary, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s, ok := a.summaries[machineID]
	if !ok {
		return model.MachineSummary{}, false
	}
	return *s, true
}

// Summaries returns copies of all totals ordered by machine id
func (a *Aggregator) Summaries() []model.MachineSummary {
	a.mu.RLock()
	out := make([]model.MachineSummary, 0, len(a.summaries))
	for _, s := range a.summaries {
		out = append(out, *s)
	}
	a.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].MachineID < out[j].MachineID })
	return out
}
