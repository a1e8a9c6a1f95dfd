// Package sink writes metrics and verdict records to the time-series store.
package sink

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"greentwin/internal/config"
	"greentwin/internal/model"
	"greentwin/internal/store"
)

// Measurement names shared by every backend
const (
	MeasurementMetrics  = "machine_metrics"
	MeasurementAnalysis = "ai_analysis"
)

// Sink receives the two record kinds produced per reading
type Sink interface {
	WriteMetrics(ctx context.Context, rec model.MetricsRecord) error
	WriteVerdict(ctx context.Context, rec model.VerdictRecord) error
	Close() error
}

// New creates the sink selected by cfg.Type. db is required only by the sqlite backend.
func New(ctx context.Context, cfg config.SinkConfig, db *store.DB, log *zap.Logger) (Sink, error) {
	switch cfg.Type {
	case "influxdb":
		return NewInfluxSink(ctx, cfg.InfluxDB.URL, cfg.InfluxDB.Token, cfg.InfluxDB.Org, cfg.InfluxDB.Bucket)
	case "postgres":
		return NewPostgresSink(ctx, cfg.Postgres.DSN)
	case "sqlite":
		if db == nil {
			return nil, errors.New("sqlite sink requires an open database")
		}
		return NewSQLiteSink(db), nil
	case "log":
		return NewLogSink(log), nil
	default:
		return nil, fmt.Errorf("unknown sink type %q", cfg.Type)
	}
}
