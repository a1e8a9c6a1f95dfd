package pipeline

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"greentwin/internal/metrics"
	"greentwin/internal/model"
)

// ControllerFactory creates the controller for a newly seen machine
type ControllerFactory func(machineID string) *Controller

type worker struct {
	queue chan model.Reading
	ctrl  *Controller
}

// Dispatcher routes readings by machine id to one worker goroutine per
// machine. Each worker exclusively owns its controller, so readings of one
// machine are processed in arrival order and machines never share state.
// Dispatch and Close must be called from the same goroutine.
type Dispatcher struct {
	newController ControllerFactory
	maxMachines   int
	queueSize     int
	tracker       *Tracker
	log           *zap.Logger

	// workers outlive the caller's context so queued readings finish on shutdown
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	workers map[string]*worker
	wg      sync.WaitGroup
	closed  bool
}

func NewDispatcher(factory ControllerFactory, maxMachines, queueSize int, tracker *Tracker, log *zap.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		newController: factory,
		maxMachines:   maxMachines,
		queueSize:     queueSize,
		tracker:       tracker,
		log:           log.Named("dispatcher"),
		ctx:           ctx,
		cancel:        cancel,
		workers:       make(map[string]*worker),
	}
}

// Dispatch parses a message and hands the reading to its machine's worker.
// It blocks while that worker's queue is full. Input errors are reported and returned.
func (d *Dispatcher) Dispatch(ctx context.Context, msg model.RawMessage) error {
	r, err := ParseMessage(msg)
	if err != nil {
		d.reject("", err)
		return err
	}

	w, err := d.workerFor(r.MachineID)
	if err != nil {
		d.reject(r.MachineID, err)
		return err
	}

	select {
	case w.queue <- r:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) workerFor(machineID string) (*worker, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, fmt.Errorf("dispatcher closed")
	}
	if w, ok := d.workers[machineID]; ok {
		return w, nil
	}
	if d.maxMachines > 0 && len(d.workers) >= d.maxMachines {
		return nil, fmt.Errorf("%w: machine limit of %d reached, ignoring %s", ErrInvalidReading, d.maxMachines, machineID)
	}

	w := &worker{
		queue: make(chan model.Reading, d.queueSize),
		ctrl:  d.newController(machineID),
	}
	d.workers[machineID] = w
	d.log.Info("starting machine worker", zap.String("machine_id", machineID), zap.Int("machines", len(d.workers)))

	d.wg.Add(1)
	go d.run(w)
	return w, nil
}

func (d *Dispatcher) run(w *worker) {
	defer d.wg.Done()
	w.ctrl.Init(d.ctx)
	for r := range w.queue {
		w.ctrl.processParsed(d.ctx, r)
	}
}

func (d *Dispatcher) reject(machineID string, err error) {
	// machine_id is left empty so unknown ids cannot grow label cardinality
	metrics.ReadingsTotal.WithLabelValues("", "rejected").Inc()
	d.log.Warn("reading rejected", zap.String("machine_id", machineID), zap.Error(err))
	if d.tracker != nil {
		d.tracker.RecordError("ingest", machineID, err)
	}
}

// Machines returns the number of active workers
func (d *Dispatcher) Machines() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.workers)
}

// Close stops accepting readings and waits for every queued reading to be processed
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, w := range d.workers {
		close(w.queue)
	}
	d.mu.Unlock()

	d.wg.Wait()
	d.cancel()
}
