package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"greentwin/internal/anomaly"
	"greentwin/internal/model"
	"greentwin/internal/modelstore"
)

var baseTime = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

// memStore is an in-memory modelstore.Store that round-trips through the codec
type memStore struct {
	mu      sync.Mutex
	blobs   map[string][]byte
	saves   int
	loadErr error
	saveErr error
}

func newMemStore() *memStore {
	return &memStore{blobs: make(map[string][]byte)}
}

func (s *memStore) Load(_ context.Context, machineID string) (*anomaly.Model, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	blob, ok := s.blobs[machineID]
	if !ok {
		return nil, modelstore.ErrNotFound
	}
	return anomaly.Unmarshal(blob)
}

func (s *memStore) Save(_ context.Context, machineID string, m *anomaly.Model) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	blob, err := m.MarshalBinary()
	if err != nil {
		return err
	}
	s.blobs[machineID] = blob
	return nil
}

func (s *memStore) Close() error { return nil }

func (s *memStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// recordingEmitter captures emitted records synchronously
type recordingEmitter struct {
	mu       sync.Mutex
	metrics  []model.MetricsRecord
	verdicts []model.VerdictRecord
}

func (e *recordingEmitter) EmitMetrics(rec model.MetricsRecord) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.metrics = append(e.metrics, rec)
	return true
}

func (e *recordingEmitter) EmitVerdict(rec model.VerdictRecord) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.verdicts = append(e.verdicts, rec)
	return true
}

func (e *recordingEmitter) counts() (int, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.metrics), len(e.verdicts)
}

// recordingSink is a sink.Sink that can block or fail on demand
type recordingSink struct {
	mu       sync.Mutex
	metrics  []model.MetricsRecord
	verdicts []model.VerdictRecord
	order    []string
	failWith error
	gate     chan struct{}
	started  chan struct{}
	once     sync.Once
}

func (s *recordingSink) wait() {
	if s.started != nil {
		s.once.Do(func() { close(s.started) })
	}
	if s.gate != nil {
		<-s.gate
	}
}

func (s *recordingSink) WriteMetrics(_ context.Context, rec model.MetricsRecord) error {
	s.wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	s.metrics = append(s.metrics, rec)
	s.order = append(s.order, fmt.Sprintf("m:%s", rec.MachineID))
	return nil
}

func (s *recordingSink) WriteVerdict(_ context.Context, rec model.VerdictRecord) error {
	s.wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	s.verdicts = append(s.verdicts, rec)
	s.order = append(s.order, fmt.Sprintf("v:%s", rec.MachineID))
	return nil
}

func (s *recordingSink) Close() error { return nil }

func testOptions() Options {
	return Options{
		TrainingSize: 30,
		Features:     []string{"current_amp"},
		Params:       anomaly.DefaultParams(),
		SaveTimeout:  time.Second,
		Deriver:      Deriver{EmissionFactor: 0.44, UnitPrice: 4.50},
	}
}

func newTestController(machineID string, store *memStore, emitter Emitter, tracker *Tracker) *Controller {
	return NewController(machineID, testOptions(), Dependencies{
		Store:      store,
		Emitter:    emitter,
		Tracker:    tracker,
		Aggregator: NewAggregator(),
		Logger:     zap.NewNop(),
	})
}

// trainingCurrent returns the i-th current of a tight training range around 12 A
func trainingCurrent(i int) float64 {
	return 11.71 + 0.02*float64(i%30)
}

func reading(machineID string, i int, current float64) model.Reading {
	return model.Reading{
		MachineID:  machineID,
		CurrentAmp: current,
		PowerKW:    220 * current * 0.8 / 1000,
		Timestamp:  baseTime.Add(time.Duration(i) * time.Second),
	}
}
