package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"greentwin/internal/model"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS machine_metrics (
	time            TIMESTAMPTZ      NOT NULL,
	machine_id      TEXT             NOT NULL,
	current         DOUBLE PRECISION NOT NULL,
	power_kw        DOUBLE PRECISION NOT NULL,
	energy_kwh      DOUBLE PRECISION NOT NULL,
	co2_grams       DOUBLE PRECISION NOT NULL,
	cost_minor_unit DOUBLE PRECISION NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_machine_metrics_machine_time ON machine_metrics (machine_id, time DESC);
CREATE TABLE IF NOT EXISTS ai_analysis (
	time       TIMESTAMPTZ NOT NULL,
	machine_id TEXT        NOT NULL,
	is_anomaly SMALLINT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ai_analysis_machine_time ON ai_analysis (machine_id, time DESC);
`

type metricsRow struct {
	Time          time.Time `db:"time"`
	MachineID     string    `db:"machine_id"`
	Current       float64   `db:"current"`
	PowerKW       float64   `db:"power_kw"`
	EnergyKWh     float64   `db:"energy_kwh"`
	CO2Grams      float64   `db:"co2_grams"`
	CostMinorUnit float64   `db:"cost_minor_unit"`
}

type analysisRow struct {
	Time      time.Time `db:"time"`
	MachineID string    `db:"machine_id"`
	IsAnomaly int       `db:"is_anomaly"`
}

func toMetricsRow(rec model.MetricsRecord) metricsRow {
	return metricsRow{
		Time:          rec.ProcessedAt.UTC(),
		MachineID:     rec.MachineID,
		Current:       rec.CurrentAmp,
		PowerKW:       rec.PowerKW,
		EnergyKWh:     rec.Derived.EnergyKWh,
		CO2Grams:      rec.Derived.CO2Grams,
		CostMinorUnit: rec.Derived.CostMinorUnit,
	}
}

func toAnalysisRow(rec model.VerdictRecord) analysisRow {
	return analysisRow{
		Time:      rec.ProcessedAt.UTC(),
		MachineID: rec.MachineID,
		IsAnomaly: rec.Verdict.AnomalyFlag(),
	}
}

// PostgresSink writes records to PostgreSQL (plain tables, TimescaleDB compatible)
type PostgresSink struct {
	db *sqlx.DB
}

// NewPostgresSink connects and creates the tables if needed
func NewPostgresSink(ctx context.Context, dsn string) (*PostgresSink, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create sink tables: %w", err)
	}
	return &PostgresSink{db: db}, nil
}

func (s *PostgresSink) WriteMetrics(ctx context.Context, rec model.MetricsRecord) error {
	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO machine_metrics (time, machine_id, current, power_kw, energy_kwh, co2_grams, cost_minor_unit)
		 VALUES (:time, :machine_id, :current, :power_kw, :energy_kwh, :co2_grams, :cost_minor_unit)`,
		toMetricsRow(rec))
	if err != nil {
		return fmt.Errorf("postgres insert %s: %w", MeasurementMetrics, err)
	}
	return nil
}

func (s *PostgresSink) WriteVerdict(ctx context.Context, rec model.VerdictRecord) error {
	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO ai_analysis (time, machine_id, is_anomaly) VALUES (:time, :machine_id, :is_anomaly)`,
		toAnalysisRow(rec))
	if err != nil {
		return fmt.Errorf("postgres insert %s: %w", MeasurementAnalysis, err)
	}
	return nil
}

func (s *PostgresSink) Close() error {
	return s.db.Close()
}
