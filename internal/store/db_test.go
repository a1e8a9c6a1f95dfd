package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greentwin/internal/model"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "greentwin.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "greentwin.db")
	first, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	defer second.Close()
	assert.NoError(t, second.Ping(context.Background()))
}

func TestSaveMetricsAndVerdicts(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, db.SaveMetrics(ctx, model.MetricsRecord{
		MachineID: "Press_01", CurrentAmp: 12.1, PowerKW: 2.13,
		Derived:     model.DerivedMetrics{EnergyKWh: 0.0006, CO2Grams: 0.26, CostMinorUnit: 0.27},
		ProcessedAt: now,
	}))
	require.NoError(t, db.SaveVerdict(ctx, model.VerdictRecord{
		MachineID: "Press_01", Verdict: model.Verdict{MachineID: "Press_01", IsAnomaly: true, Evaluated: true, Score: 0.8},
		ProcessedAt: now,
	}))
	require.NoError(t, db.SaveVerdict(ctx, model.VerdictRecord{
		MachineID: "Press_01", Verdict: model.Verdict{MachineID: "Press_01"},
		ProcessedAt: now,
	}))

	metrics, verdicts, err := db.CountRecords(ctx, "Press_01")
	require.NoError(t, err)
	assert.Equal(t, 1, metrics)
	assert.Equal(t, 2, verdicts)

	anomalies, err := db.CountAnomalies(ctx, "Press_01")
	require.NoError(t, err)
	assert.Equal(t, 1, anomalies)
}

func TestModelArtifacts(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.LoadModel(ctx, "Press_01")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, db.SaveModel(ctx, "Press_01", "m1", []byte{1, 2, 3}, time.Now()))
	require.NoError(t, db.SaveModel(ctx, "Press_01", "m2", []byte{4, 5}, time.Now()))

	blob, err := db.LoadModel(ctx, "Press_01")
	require.NoError(t, err)
	assert.Equal(t, []byte{4, 5}, blob)
}

func TestSummaries(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.LatestSummary(ctx, "Press_01")
	assert.ErrorIs(t, err, ErrNotFound)

	first := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s := model.MachineSummary{
		MachineID: "Press_01", Readings: 10, Anomalies: 1, EnergyKWh: 0.006,
		CO2Grams: 2.6, CostMinorUnits: 2.7, AvgPowerKW: 2.1,
		MinCurrentAmp: 11.5, MaxCurrentAmp: 18.2, FirstSeen: first, LastSeen: first.Add(10 * time.Second),
	}
	require.NoError(t, db.SaveSummary(ctx, s, time.Now()))
	s.Readings = 20
	require.NoError(t, db.SaveSummary(ctx, s, time.Now()))

	got, err := db.LatestSummary(ctx, "Press_01")
	require.NoError(t, err)
	assert.EqualValues(t, 20, got.Readings)
	assert.Equal(t, 18.2, got.MaxCurrentAmp)
	assert.True(t, first.Equal(got.FirstSeen))
}
