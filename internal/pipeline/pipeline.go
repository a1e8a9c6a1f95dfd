package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"greentwin/internal/model"
)

// Pipeline connects a source to the per-machine dispatcher and the sink exporter
type Pipeline struct {
	source       Source
	dispatcher   *Dispatcher
	exporter     *Exporter
	log          *zap.Logger
	drainTimeout time.Duration
	bufferSize   int
}

func New(source Source, dispatcher *Dispatcher, exporter *Exporter, drainTimeout time.Duration, log *zap.Logger) *Pipeline {
	if drainTimeout <= 0 {
		drainTimeout = 10 * time.Second
	}
	return &Pipeline{
		source:       source,
		dispatcher:   dispatcher,
		exporter:     exporter,
		log:          log.Named("pipeline"),
		drainTimeout: drainTimeout,
		bufferSize:   64,
	}
}

// Run pulls messages until ctx is cancelled or the source is exhausted, then
// lets every worker finish its queued readings and drains the sink queue.
func (p *Pipeline) Run(ctx context.Context) error {
	start := time.Now()
	p.log.Info("pipeline started")

	msgs := make(chan model.RawMessage, p.bufferSize)
	var sourceErr error
	var wg sync.WaitGroup

	// --- INGESTION STAGE ---
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(msgs) // safe: only this goroutine closes msgs
		sourceErr = p.source.Run(ctx, msgs)
	}()

	// --- DISPATCH STAGE ---
	var dispatched, rejected int
	for msg := range msgs {
		if err := p.dispatcher.Dispatch(ctx, msg); err != nil {
			rejected++
			continue
		}
		dispatched++
	}
	wg.Wait()

	// --- SHUTDOWN ---
	p.dispatcher.Close()

	drainCtx, cancel := context.WithTimeout(context.Background(), p.drainTimeout)
	defer cancel()
	drainErr := p.exporter.Close(drainCtx)
	if drainErr != nil {
		p.log.Error("sink queue not fully drained", zap.Error(drainErr))
	}

	p.log.Info("pipeline stopped",
		zap.Int("dispatched", dispatched),
		zap.Int("rejected", rejected),
		zap.Int("machines", p.dispatcher.Machines()),
		zap.Duration("uptime", time.Since(start)),
	)

	if sourceErr != nil && !errors.Is(sourceErr, context.Canceled) {
		return errors.Join(sourceErr, drainErr)
	}
	return drainErr
}
