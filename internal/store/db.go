package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"greentwin/internal/model"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("not found")

// DB is the engine's local sqlite database. It backs the sqlite sink, the
// sqlite model store and the summary snapshots written by the report job.
type DB struct {
	db *sql.DB
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS machine_metrics (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		machine_id TEXT NOT NULL,
		current REAL NOT NULL,
		power_kw REAL NOT NULL,
		energy_kwh REAL NOT NULL,
		co2_grams REAL NOT NULL,
		cost_minor_unit REAL NOT NULL,
		processed_at DATETIME NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_machine_metrics_machine ON machine_metrics (machine_id, processed_at);`,
	`CREATE TABLE IF NOT EXISTS ai_analysis (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		machine_id TEXT NOT NULL,
		is_anomaly INTEGER NOT NULL,
		evaluated INTEGER NOT NULL,
		score REAL,
		processed_at DATETIME NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_ai_analysis_machine ON ai_analysis (machine_id, processed_at);`,
	`CREATE TABLE IF NOT EXISTS model_artifacts (
		machine_id TEXT PRIMARY KEY,
		model_id TEXT NOT NULL,
		blob BLOB NOT NULL,
		trained_at DATETIME,
		saved_at DATETIME NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS machine_summaries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		machine_id TEXT NOT NULL,
		readings INTEGER NOT NULL,
		anomalies INTEGER NOT NULL,
		energy_kwh REAL NOT NULL,
		co2_grams REAL NOT NULL,
		cost_minor_units REAL NOT NULL,
		avg_power_kw REAL NOT NULL,
		min_current_amp REAL NOT NULL,
		max_current_amp REAL NOT NULL,
		first_seen DATETIME,
		last_seen DATETIME,
		snapshot_at DATETIME NOT NULL
	);`,
}

// Open opens (creating if needed) the sqlite database at path.
// ":memory:" is supported and pinned to a single connection.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// sqlite serializes writers anyway; one connection also keeps :memory: consistent
	db.SetMaxOpenConns(1)

	// Create tables if not exists
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}

	return &DB{db: db}, nil
}

// Close closes the database
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping verifies the connection is usable
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// SaveMetrics stores one machine_metrics record
func (d *DB) SaveMetrics(ctx context.Context, rec model.MetricsRecord) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO machine_metrics (machine_id, current, power_kw, energy_kwh, co2_grams, cost_minor_unit, processed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.MachineID, rec.CurrentAmp, rec.PowerKW,
		rec.Derived.EnergyKWh, rec.Derived.CO2Grams, rec.Derived.CostMinorUnit,
		rec.ProcessedAt.UTC())
	return err
}

// SaveVerdict stores one ai_analysis record
func (d *DB) SaveVerdict(ctx context.Context, rec model.VerdictRecord) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO ai_analysis (machine_id, is_anomaly, evaluated, score, processed_at) VALUES (?, ?, ?, ?, ?)`,
		rec.MachineID, rec.Verdict.AnomalyFlag(), rec.Verdict.Evaluated, rec.Verdict.Score, rec.ProcessedAt.UTC())
	return err
}

// CountRecords returns the number of rows in machine_metrics and ai_analysis for a machine
func (d *DB) CountRecords(ctx context.Context, machineID string) (metrics int, verdicts int, err error) {
	if err = d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM machine_metrics WHERE machine_id = ?`, machineID).Scan(&metrics); err != nil {
		return 0, 0, err
	}
	if err = d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ai_analysis WHERE machine_id = ?`, machineID).Scan(&verdicts); err != nil {
		return 0, 0, err
	}
	return metrics, verdicts, nil
}

// CountAnomalies returns the number of anomalous verdicts recorded for a machine
func (d *DB) CountAnomalies(ctx context.Context, machineID string) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ai_analysis WHERE machine_id = ? AND is_anomaly = 1`, machineID).Scan(&n)
	return n, err
}

// SaveModel upserts the model blob for a machine
func (d *DB) SaveModel(ctx context.Context, machineID, modelID string, blob []byte, trainedAt time.Time) error {
	now := time.Now().UTC()
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO model_artifacts (machine_id, model_id, blob, trained_at, saved_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(machine_id) DO UPDATE SET model_id = excluded.model_id, blob = excluded.blob,
		 trained_at = excluded.trained_at, saved_at = excluded.saved_at`,
		machineID, modelID, blob, trainedAt.UTC(), now)
	return err
}

// LoadModel returns the model blob stored for a machine, or ErrNotFound
func (d *DB) LoadModel(ctx context.Context, machineID string) ([]byte, error) {
	var blob []byte
	err := d.db.QueryRowContext(ctx,
		`SELECT blob FROM model_artifacts WHERE machine_id = ?`, machineID).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return blob, nil
}

// SaveSummary records a snapshot of a machine's running totals
func (d *DB) SaveSummary(ctx context.Context, s model.MachineSummary, snapshotAt time.Time) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO machine_summaries (machine_id, readings, anomalies, energy_kwh, co2_grams, cost_minor_units,
		 avg_power_kw, min_current_amp, max_current_amp, first_seen, last_seen, snapshot_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.MachineID, s.Readings, s.Anomalies, s.EnergyKWh, s.CO2Grams, s.CostMinorUnits,
		s.AvgPowerKW, s.MinCurrentAmp, s.MaxCurrentAmp, s.FirstSeen.UTC(), s.LastSeen.UTC(), snapshotAt.UTC())
	return err
}

// LatestSummary returns the most recent snapshot for a machine, or ErrNotFound
func (d *DB) LatestSummary(ctx context.Context, machineID string) (model.MachineSummary, error) {
	var s model.MachineSummary
	err := d.db.QueryRowContext(ctx,
		`SELECT machine_id, readings, anomalies, energy_kwh, co2_grams, cost_minor_units,
		 avg_power_kw, min_current_amp, max_current_amp, first_seen, last_seen
		 FROM machine_summaries WHERE machine_id = ? ORDER BY id DESC LIMIT 1`, machineID).
		Scan(&s.MachineID, &s.Readings, &s.Anomalies, &s.EnergyKWh, &s.CO2Grams, &s.CostMinorUnits,
			&s.AvgPowerKW, &s.MinCurrentAmp, &s.MaxCurrentAmp, &s.FirstSeen, &s.LastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return s, ErrNotFound
	}
	return s, err
}
