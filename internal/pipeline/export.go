package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"greentwin/internal/metrics"
	"greentwin/internal/model"
	"greentwin/internal/sink"
)

const (
	kindMetrics = "metrics"
	kindVerdict = "verdict"
)

// Emitter accepts sink records without blocking the caller
type Emitter interface {
	EmitMetrics(rec model.MetricsRecord) bool
	EmitVerdict(rec model.VerdictRecord) bool
}

type exportItem struct {
	kind    string
	metrics model.MetricsRecord
	verdict model.VerdictRecord
}

// Exporter decouples the per-reading path from sink latency: records go into
// a bounded FIFO drained by a single writer goroutine, so sink order matches
// emit order. A full queue drops the record; failed writes are logged and not retried.
type Exporter struct {
	sink         sink.Sink
	queue        chan exportItem
	writeTimeout time.Duration
	tracker      *Tracker
	log          *zap.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewExporter starts the writer goroutine
func NewExporter(s sink.Sink, queueSize int, writeTimeout time.Duration, tracker *Tracker, log *zap.Logger) *Exporter {
	if queueSize <= 0 {
		queueSize = 1
	}
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	e := &Exporter{
		sink:         s,
		queue:        make(chan exportItem, queueSize),
		writeTimeout: writeTimeout,
		tracker:      tracker,
		log:          log.Named("exporter"),
		done:         make(chan struct{}),
	}
	go e.run()
	return e
}

func (e *Exporter) EmitMetrics(rec model.MetricsRecord) bool {
	return e.enqueue(exportItem{kind: kindMetrics, metrics: rec}, rec.MachineID)
}

func (e *Exporter) EmitVerdict(rec model.VerdictRecord) bool {
	return e.enqueue(exportItem{kind: kindVerdict, verdict: rec}, rec.MachineID)
}

func (e *Exporter) enqueue(item exportItem, machineID string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		metrics.SinkQueueDropped.WithLabelValues(item.kind).Inc()
		return false
	}

	select {
	case e.queue <- item:
		metrics.SinkQueueDepth.Set(float64(len(e.queue)))
		return true
	default:
		metrics.SinkQueueDropped.WithLabelValues(item.kind).Inc()
		e.log.Warn("sink queue full, dropping record",
			zap.String("kind", item.kind),
			zap.String("machine_id", machineID),
		)
		return false
	}
}

func (e *Exporter) run() {
	defer close(e.done)
	for item := range e.queue {
		metrics.SinkQueueDepth.Set(float64(len(e.queue)))
		e.write(item)
	}
}

func (e *Exporter) write(item exportItem) {
	ctx, cancel := context.WithTimeout(context.Background(), e.writeTimeout)
	defer cancel()

	var err error
	var machineID string
	switch item.kind {
	case kindMetrics:
		machineID = item.metrics.MachineID
		err = e.sink.WriteMetrics(ctx, item.metrics)
	case kindVerdict:
		machineID = item.verdict.MachineID
		err = e.sink.WriteVerdict(ctx, item.verdict)
	}

	if err != nil {
		metrics.SinkWritesTotal.WithLabelValues(item.kind, "error").Inc()
		e.log.Error("sink write failed",
			zap.String("kind", item.kind),
			zap.String("machine_id", machineID),
			zap.Error(err),
		)
		if e.tracker != nil {
			e.tracker.RecordError("sink", machineID, err)
		}
		return
	}
	metrics.SinkWritesTotal.WithLabelValues(item.kind, "success").Inc()
}

// Close stops accepting records and waits until the queue is drained or ctx is done
func (e *Exporter) Close(ctx context.Context) error {
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		close(e.queue)
	}
	e.mu.Unlock()

	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return errors.Join(errors.New("sink queue not drained"), ctx.Err())
	}
}
