package sink

import (
	"context"

	"go.uber.org/zap"

	"greentwin/internal/model"
)

// LogSink writes records as structured log lines. Useful for local runs without a database.
type LogSink struct {
	log *zap.Logger
}

func NewLogSink(log *zap.Logger) *LogSink {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogSink{log: log.Named("sink")}
}

func (s *LogSink) WriteMetrics(_ context.Context, rec model.MetricsRecord) error {
	s.log.Info(MeasurementMetrics,
		zap.String("machine_id", rec.MachineID),
		zap.Float64("current", rec.CurrentAmp),
		zap.Float64("power_kw", rec.PowerKW),
		zap.Float64("energy_kwh", rec.Derived.EnergyKWh),
		zap.Float64("co2_grams", rec.Derived.CO2Grams),
		zap.Float64("cost_minor_unit", rec.Derived.CostMinorUnit),
		zap.Time("time", rec.ProcessedAt),
	)
	return nil
}

func (s *LogSink) WriteVerdict(_ context.Context, rec model.VerdictRecord) error {
	s.log.Info(MeasurementAnalysis,
		zap.String("machine_id", rec.MachineID),
		zap.Int("is_anomaly", rec.Verdict.AnomalyFlag()),
		zap.Bool("evaluated", rec.Verdict.Evaluated),
		zap.Time("time", rec.ProcessedAt),
	)
	return nil
}

func (s *LogSink) Close() error {
	_ = s.log.Sync()
	return nil
}
