package report

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"greentwin/internal/model"
	"greentwin/internal/store"
)

type staticSummaries []model.MachineSummary

func (s staticSummaries) Summaries() []model.MachineSummary { return s }

type failingStore struct{}

func (failingStore) SaveSummary(context.Context, model.MachineSummary, time.Time) error {
	return errors.New("database is locked")
}

var summaries = staticSummaries{
	{MachineID: "Press_01", Readings: 100, Anomalies: 10, EnergyKWh: 0.06, CO2Grams: 26.4, CostMinorUnits: 27},
	{MachineID: "Press_02", Readings: 50, EnergyKWh: 0.03, CO2Grams: 13.2, CostMinorUnits: 13.5},
}

func TestRunOnce_LogsAndSnapshots(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "report.db"))
	require.NoError(t, err)
	defer db.Close()

	core, logs := observer.New(zap.InfoLevel)
	r, err := New("@every 15m", summaries, db, zap.New(core))
	require.NoError(t, err)

	require.NoError(t, r.RunOnce(context.Background()))

	entries := logs.FilterMessage("machine summary").All()
	require.Len(t, entries, 2)
	assert.Equal(t, 0.1, entries[0].ContextMap()["anomaly_rate"])
	assert.InDelta(t, 0.0264, entries[0].ContextMap()["co2_kg"], 1e-12)

	got, err := db.LatestSummary(context.Background(), "Press_02")
	require.NoError(t, err)
	assert.EqualValues(t, 50, got.Readings)
}

func TestRunOnce_WithoutStore(t *testing.T) {
	r, err := New("@every 1m", summaries, nil, zap.NewNop())
	require.NoError(t, err)
	assert.NoError(t, r.RunOnce(context.Background()))
}

func TestRunOnce_ReportsStoreErrors(t *testing.T) {
	r, err := New("@every 1m", summaries, failingStore{}, zap.NewNop())
	require.NoError(t, err)

	err = r.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Press_01")
	assert.Contains(t, err.Error(), "Press_02")
}

func TestNew_InvalidSchedule(t *testing.T) {
	_, err := New("every fortnight", summaries, nil, zap.NewNop())
	assert.Error(t, err)
}

func TestStartStop(t *testing.T) {
	r, err := New("@every 1h", summaries, nil, zap.NewNop())
	require.NoError(t, err)
	r.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r.Stop(ctx)
}
