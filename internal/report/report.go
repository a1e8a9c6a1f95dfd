// Package report periodically snapshots per-machine sustainability summaries.
package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"greentwin/internal/model"
)

// SummarySource provides the current running totals
type SummarySource interface {
	Summaries() []model.MachineSummary
}

// SnapshotStore persists summary snapshots
type SnapshotStore interface {
	SaveSummary(ctx context.Context, s model.MachineSummary, snapshotAt time.Time) error
}

// Reporter runs the summary job on a cron schedule
type Reporter struct {
	cron    *cron.Cron
	source  SummarySource
	store   SnapshotStore
	log     *zap.Logger
	timeout time.Duration
}

// New validates the schedule and registers the job. store may be nil, in which
// case summaries are only logged.
func New(schedule string, source SummarySource, store SnapshotStore, log *zap.Logger) (*Reporter, error) {
	r := &Reporter{
		cron:    cron.New(),
		source:  source,
		store:   store,
		log:     log.Named("report"),
		timeout: 30 * time.Second,
	}
	if _, err := r.cron.AddFunc(schedule, r.run); err != nil {
		return nil, fmt.Errorf("invalid report schedule %q: %w", schedule, err)
	}
	return r, nil
}

func (r *Reporter) Start() {
	r.cron.Start()
	r.log.Info("report job scheduled", zap.Int("entries", len(r.cron.Entries())))
}

// Stop stops the scheduler and waits for a running job up to ctx
func (r *Reporter) Stop(ctx context.Context) {
	done := r.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

func (r *Reporter) run() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.RunOnce(ctx); err != nil {
		r.log.Error("report run failed", zap.Error(err))
	}
}

// RunOnce logs every machine summary and stores a snapshot of each
func (r *Reporter) RunOnce(ctx context.Context) error {
	now := time.Now().UTC()
	var errs []error

	for _, s := range r.source.Summaries() {
		anomalyRate := 0.0
		if s.Readings > 0 {
			anomalyRate = float64(s.Anomalies) / float64(s.Readings)
		}
		r.log.Info("machine summary",
			zap.String("machine_id", s.MachineID),
			zap.Int64("readings", s.Readings),
			zap.Int64("anomalies", s.Anomalies),
			zap.Float64("anomaly_rate", anomalyRate),
			zap.Float64("energy_kwh", s.EnergyKWh),
			zap.Float64("co2_kg", s.CO2Kilograms()),
			zap.Float64("cost", s.CostMinorUnits/100),
			zap.Float64("avg_power_kw", s.AvgPowerKW),
			zap.Time("first_seen", s.FirstSeen),
			zap.Time("last_seen", s.LastSeen),
		)

		if r.store == nil {
			continue
		}
		if err := r.store.SaveSummary(ctx, s, now); err != nil {
			errs = append(errs, fmt.Errorf("save summary for %s: %w", s.MachineID, err))
		}
	}
	return errors.Join(errs...)
}
