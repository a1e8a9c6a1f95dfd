package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"greentwin/internal/model"
)

func payload(machineID string, current float64) model.RawMessage {
	return model.RawMessage{
		Payload:    []byte(fmt.Sprintf(`{"machine_id": %q, "current_amp": %v, "power_kw": %v}`, machineID, current, 220*current*0.8/1000)),
		ReceivedAt: baseTime,
	}
}

func newTestDispatcher(store *memStore, emitter Emitter, tracker *Tracker, maxMachines int) *Dispatcher {
	factory := func(machineID string) *Controller {
		return newTestController(machineID, store, emitter, tracker)
	}
	return NewDispatcher(factory, maxMachines, 8, tracker, zap.NewNop())
}

func TestDispatcher_IsolatesMachines(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	emitter := &recordingEmitter{}
	tracker := NewTracker(10)
	d := newTestDispatcher(store, emitter, tracker, 4)

	for i := 0; i < 30; i++ {
		require.NoError(t, d.Dispatch(ctx, payload("Press_01", trainingCurrent(i))))
		if i < 5 {
			require.NoError(t, d.Dispatch(ctx, payload("Press_02", 30+float64(i))))
		}
	}
	require.NoError(t, d.Dispatch(ctx, payload("Press_01", 18.0)))
	d.Close()

	assert.Equal(t, 2, d.Machines())

	a, ok := tracker.Status("Press_01")
	require.True(t, ok)
	assert.Equal(t, model.StateReady, a.State)
	assert.EqualValues(t, 31, a.Processed)
	assert.EqualValues(t, 1, a.Anomalies)

	b, ok := tracker.Status("Press_02")
	require.True(t, ok)
	assert.Equal(t, model.StateTraining, b.State)
	assert.Equal(t, 5, b.BufferSize)

	assert.Contains(t, store.blobs, "Press_01")
	assert.NotContains(t, store.blobs, "Press_02")

	metrics, verdicts := emitter.counts()
	assert.Equal(t, 36, metrics)
	assert.Equal(t, 36, verdicts)
}

func TestDispatcher_PreservesPerMachineOrder(t *testing.T) {
	ctx := context.Background()
	emitter := &recordingEmitter{}
	d := newTestDispatcher(newMemStore(), emitter, nil, 0)

	for i := 0; i < 20; i++ {
		require.NoError(t, d.Dispatch(ctx, payload("Press_01", 10+float64(i))))
	}
	d.Close()

	require.Len(t, emitter.metrics, 20)
	for i, rec := range emitter.metrics {
		assert.Equal(t, 10+float64(i), rec.CurrentAmp)
	}
}

func TestDispatcher_RejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	tracker := NewTracker(10)
	d := newTestDispatcher(newMemStore(), &recordingEmitter{}, tracker, 1)
	defer d.Close()

	err := d.Dispatch(ctx, model.RawMessage{Payload: []byte(`{"machine_id": "Press_01", "power_kw": 2}`)})
	assert.True(t, errors.Is(err, ErrInvalidReading))

	require.NoError(t, d.Dispatch(ctx, payload("Press_01", 12)))
	err = d.Dispatch(ctx, payload("Press_02", 12))
	assert.True(t, errors.Is(err, ErrInvalidReading), "machine limit reached")
	assert.Equal(t, 1, d.Machines())

	errs := tracker.Errors()
	require.Len(t, errs, 2)
	assert.Equal(t, "ingest", errs[0].Stage)
	assert.Equal(t, "Press_02", errs[0].MachineID)
}

func TestDispatcher_ClosedRejects(t *testing.T) {
	d := newTestDispatcher(newMemStore(), &recordingEmitter{}, nil, 0)
	d.Close()
	d.Close()
	assert.Error(t, d.Dispatch(context.Background(), payload("Press_01", 12)))
}
