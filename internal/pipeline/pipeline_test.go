package pipeline

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"greentwin/internal/model"
)

func TestPipeline_ReplayEndToEnd(t *testing.T) {
	var lines []string
	for i := 0; i < 30; i++ {
		lines = append(lines, fmt.Sprintf(`{"machine_id":"Press_01","current_amp":%v,"power_kw":2.1}`, trainingCurrent(i)))
		if i == 10 {
			lines = append(lines, `{"machine_id":"Press_01","power_kw":2.1}`) // missing current
		}
	}
	lines = append(lines,
		`{"machine_id":"Press_01","current_amp":12.1,"power_kw":2.13}`,
		`{"machine_id":"Press_01","current_amp":18.0,"power_kw":3.17}`,
	)
	path := writeFile(t, "replay.json", strings.Join(lines, "\n"))

	sink := &recordingSink{}
	tracker := NewTracker(10)
	agg := NewAggregator()
	exporter := NewExporter(sink, 128, time.Second, tracker, zap.NewNop())
	store := newMemStore()
	dispatcher := NewDispatcher(func(machineID string) *Controller {
		return NewController(machineID, testOptions(), Dependencies{
			Store: store, Emitter: exporter, Tracker: tracker, Aggregator: agg, Logger: zap.NewNop(),
		})
	}, 8, 16, tracker, zap.NewNop())

	p := New(NewFileSource(path, "json", zap.NewNop()), dispatcher, exporter, time.Second, zap.NewNop())
	require.NoError(t, p.Run(context.Background()))

	require.Len(t, sink.metrics, 32)
	require.Len(t, sink.verdicts, 32)
	for i := 0; i < 30; i++ {
		assert.False(t, sink.verdicts[i].Verdict.Evaluated)
	}
	assert.False(t, sink.verdicts[30].Verdict.IsAnomaly)
	assert.True(t, sink.verdicts[31].Verdict.IsAnomaly)

	status, ok := tracker.Status("Press_01")
	require.True(t, ok)
	assert.Equal(t, model.StateReady, status.State)
	assert.True(t, status.Persisted)

	summary, ok := agg.Summary("Press_01")
	require.True(t, ok)
	assert.EqualValues(t, 32, summary.Readings)
	assert.EqualValues(t, 1, summary.Anomalies)

	require.Len(t, tracker.Errors(), 1)
	assert.Equal(t, "ingest", tracker.Errors()[0].Stage)
}

func TestPipeline_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := sourceFunc(func(ctx context.Context, out chan<- model.RawMessage) error {
		out <- payload("Press_01", 12)
		<-ctx.Done()
		return ctx.Err()
	})

	sink := &recordingSink{}
	exporter := NewExporter(sink, 8, time.Second, nil, zap.NewNop())
	dispatcher := newTestDispatcher(newMemStore(), exporter, nil, 0)
	p := New(src, dispatcher, exporter, time.Second, zap.NewNop())

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not stop")
	}
	assert.Len(t, sink.metrics, 1)
}

type sourceFunc func(ctx context.Context, out chan<- model.RawMessage) error

func (f sourceFunc) Run(ctx context.Context, out chan<- model.RawMessage) error {
	return f(ctx, out)
}
