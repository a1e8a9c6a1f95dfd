package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"greentwin/internal/anomaly"
	"greentwin/internal/config"
	"greentwin/internal/metrics"
	"greentwin/internal/model"
	"greentwin/internal/modelstore"
)

// Outcome classifies how one reading went through the controller
type Outcome int

const (
	// OutcomeProcessed: metrics and a verdict were emitted
	OutcomeProcessed Outcome = iota
	// OutcomeSkipped: the reading was dropped; state is unchanged
	OutcomeSkipped
	// OutcomeFitFailed: the reading was buffered and emitted, but the fit it
	// triggered failed; the machine stays in TRAINING with its buffer retained
	OutcomeFitFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeProcessed:
		return "processed"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFitFailed:
		return "fit_failed"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// StageResult is the explicit result of processing one reading
type StageResult struct {
	Outcome Outcome
	State   model.PipelineState
	Metrics model.MetricsRecord
	Verdict model.Verdict
	Err     error
}

// Options are the fixed per-machine settings of a controller
type Options struct {
	TrainingSize int
	Features     []string
	Params       anomaly.Params
	SaveTimeout  time.Duration
	Deriver      Deriver
}

// OptionsFromConfig builds controller options from the engine configuration
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		TrainingSize: cfg.Model.TrainingSize,
		Features:     append([]string(nil), cfg.Model.Features...),
		Params: anomaly.Params{
			Trees:         cfg.Model.Trees,
			Contamination: cfg.Model.Contamination,
			Seed:          cfg.Model.Seed,
		},
		SaveTimeout: cfg.Model.SaveTimeout,
		Deriver:     NewDeriver(cfg.Derive),
	}
}

// Dependencies are the collaborators shared by all controllers
type Dependencies struct {
	Store      modelstore.Store
	Emitter    Emitter
	Tracker    *Tracker
	Aggregator *Aggregator
	Logger     *zap.Logger
}

// Controller is the per-machine state machine UNINITIALIZED -> TRAINING -> READY.
// It is owned by exactly one goroutine and is not safe for concurrent use;
// status is published to the Tracker after every reading.
type Controller struct {
	machineID string
	opts      Options
	deps      Dependencies
	log       *zap.Logger
	now       func() time.Time

	state       model.PipelineState
	buffer      *TrainingBuffer
	classifier  *anomaly.Classifier
	persisted   bool
	fitFailures int

	processed     int64
	skipped       int64
	anomalies     int64
	lastReadingAt time.Time
}

func NewController(machineID string, opts Options, deps Dependencies) *Controller {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if len(opts.Features) == 0 {
		opts.Features = []string{"current_amp"}
	}
	return &Controller{
		machineID: machineID,
		opts:      opts,
		deps:      deps,
		log:       deps.Logger.Named("controller").With(zap.String("machine_id", machineID)),
		now:       func() time.Time { return time.Now().UTC() },
		state:     model.StateUninitialized,
		buffer:    NewTrainingBuffer(opts.TrainingSize),
	}
}

// State returns the current pipeline state
func (c *Controller) State() model.PipelineState {
	return c.state
}

// Init tries to load a persisted model. Any load failure falls back to TRAINING.
func (c *Controller) Init(ctx context.Context) model.PipelineState {
	if c.state != model.StateUninitialized {
		return c.state
	}

	m, err := c.deps.Store.Load(ctx, c.machineID)
	switch {
	case err == nil:
		if clf, cerr := c.adopt(m); cerr != nil {
			c.reportLoadFailure(cerr)
		} else {
			c.classifier = clf
			c.persisted = true
			c.log.Info("loaded persisted model",
				zap.String("model_id", m.ID),
				zap.Time("trained_at", m.TrainedAt),
			)
			c.setState(model.StateReady)
			c.publish()
			return c.state
		}
	case errors.Is(err, modelstore.ErrNotFound):
		c.log.Info("no persisted model, collecting training samples", zap.Int("training_size", c.buffer.Cap()))
	default:
		c.reportLoadFailure(err)
	}

	c.setState(model.StateTraining)
	c.publish()
	return c.state
}

// adopt checks a loaded model is usable with the configured features
func (c *Controller) adopt(m *anomaly.Model) (*anomaly.Classifier, error) {
	if len(m.Features) != len(c.opts.Features) {
		return nil, fmt.Errorf("persisted model uses features %v, configured %v", m.Features, c.opts.Features)
	}
	for i := range m.Features {
		if m.Features[i] != c.opts.Features[i] {
			return nil, fmt.Errorf("persisted model uses features %v, configured %v", m.Features, c.opts.Features)
		}
	}
	return anomaly.NewClassifier(m)
}

func (c *Controller) reportLoadFailure(err error) {
	metrics.ModelStoreErrors.WithLabelValues("load").Inc()
	c.log.Warn("persisted model unusable, retraining", zap.Error(err))
	if c.deps.Tracker != nil {
		c.deps.Tracker.RecordError("load", c.machineID, err)
	}
}

// Process validates and runs one reading through the pipeline. It never panics
// and never returns a result that should stop ingestion.
func (c *Controller) Process(ctx context.Context, r model.Reading) StageResult {
	return c.process(ctx, r, true)
}

// processParsed runs a reading that already passed ParseMessage
func (c *Controller) processParsed(ctx context.Context, r model.Reading) StageResult {
	return c.process(ctx, r, false)
}

func (c *Controller) process(ctx context.Context, r model.Reading, validate bool) (res StageResult) {
	defer func() {
		if p := recover(); p != nil {
			res = c.skip("process", fmt.Errorf("panic while processing reading: %v", p))
		}
	}()

	if c.state == model.StateUninitialized {
		c.Init(ctx)
	}

	if validate {
		if err := ValidateReading(r); err != nil {
			return c.skip("validate", err)
		}
	}
	if r.MachineID != c.machineID {
		return c.skip("validate", fmt.Errorf("%w: reading for %s routed to %s", ErrInvalidReading, r.MachineID, c.machineID))
	}
	features, err := FeatureVector(r, c.opts.Features)
	if err != nil {
		return c.skip("validate", err)
	}

	processedAt := c.now()
	rec := model.MetricsRecord{
		MachineID:   r.MachineID,
		CurrentAmp:  r.CurrentAmp,
		PowerKW:     r.PowerKW,
		Derived:     c.opts.Deriver.Derive(r),
		ProcessedAt: processedAt,
	}
	c.deps.Emitter.EmitMetrics(rec)

	res = StageResult{Outcome: OutcomeProcessed, Metrics: rec}

	switch c.state {
	case model.StateTraining:
		c.buffer.Append(features)
		res.Verdict = model.PlaceholderVerdict(r)
		if c.buffer.IsFull() {
			if err := c.train(ctx); err != nil {
				res.Outcome = OutcomeFitFailed
				res.Err = err
			}
		}
	case model.StateReady:
		result, err := c.classifier.Classify(features)
		if err != nil {
			// unreachable with a validated model; keep the 1:1 pairing anyway
			res.Verdict = model.PlaceholderVerdict(r)
			res.Err = err
			c.log.Error("classification failed", zap.Error(err))
			break
		}
		res.Verdict = model.Verdict{
			MachineID: r.MachineID,
			Timestamp: r.Timestamp,
			IsAnomaly: result.IsAnomaly,
			Evaluated: true,
			Score:     result.Score,
		}
	}

	c.deps.Emitter.EmitVerdict(model.VerdictRecord{
		MachineID:   r.MachineID,
		Verdict:     res.Verdict,
		ProcessedAt: processedAt,
	})
	if c.deps.Aggregator != nil {
		c.deps.Aggregator.Observe(rec, res.Verdict)
	}

	c.processed++
	c.lastReadingAt = processedAt
	if res.Verdict.IsAnomaly {
		c.anomalies++
		metrics.AnomaliesTotal.WithLabelValues(c.machineID).Inc()
		c.log.Info("anomaly detected",
			zap.Float64("current_amp", r.CurrentAmp),
			zap.Float64("score", res.Verdict.Score),
		)
	}
	metrics.ReadingsTotal.WithLabelValues(c.machineID, res.Outcome.String()).Inc()

	res.State = c.state
	c.publish()
	return res
}

// train drains the buffer, fits and persists. On fit failure the samples go
// back into the buffer so the next reading retries over a sliding window.
func (c *Controller) train(ctx context.Context) error {
	samples := c.buffer.DrainAll()

	start := time.Now()
	m, err := anomaly.Fit(samples, c.opts.Features, c.opts.Params)
	metrics.ModelFitDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.buffer.Restore(samples)
		c.fitFailures++
		metrics.ModelFitsTotal.WithLabelValues("failure").Inc()
		c.log.Warn("model fit failed, keeping samples for retry",
			zap.Int("samples", len(samples)),
			zap.Int("fit_failures", c.fitFailures),
			zap.Error(err),
		)
		if c.deps.Tracker != nil {
			c.deps.Tracker.RecordError("train", c.machineID, err)
		}
		return fmt.Errorf("fit model: %w", err)
	}
	metrics.ModelFitsTotal.WithLabelValues("success").Inc()

	clf, err := anomaly.NewClassifier(m)
	if err != nil {
		c.buffer.Restore(samples)
		return fmt.Errorf("fit model: %w", err)
	}

	// the save must finish even when shutdown has begun
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.saveTimeout())
	defer cancel()
	if err := c.deps.Store.Save(saveCtx, c.machineID, m); err != nil {
		c.persisted = false
		metrics.ModelStoreErrors.WithLabelValues("save").Inc()
		c.log.Error("model fitted but not persisted; it will be retrained after a restart",
			zap.String("model_id", m.ID),
			zap.Error(err),
		)
		if c.deps.Tracker != nil {
			c.deps.Tracker.RecordError("persist", c.machineID, err)
		}
	} else {
		c.persisted = true
	}

	c.classifier = clf
	c.setState(model.StateReady)
	c.log.Info("model fitted",
		zap.String("model_id", m.ID),
		zap.Int("samples", len(samples)),
		zap.Float64("threshold", m.Threshold),
		zap.Bool("persisted", c.persisted),
	)
	return nil
}

func (c *Controller) saveTimeout() time.Duration {
	if c.opts.SaveTimeout <= 0 {
		return 10 * time.Second
	}
	return c.opts.SaveTimeout
}

func (c *Controller) skip(stage string, err error) StageResult {
	c.skipped++
	metrics.ReadingsTotal.WithLabelValues(c.machineID, OutcomeSkipped.String()).Inc()
	c.log.Warn("reading skipped", zap.String("stage", stage), zap.Error(err))
	if c.deps.Tracker != nil {
		c.deps.Tracker.RecordError(stage, c.machineID, err)
	}
	c.publish()
	return StageResult{Outcome: OutcomeSkipped, State: c.state, Err: err}
}

func (c *Controller) setState(s model.PipelineState) {
	if s != c.state {
		c.log.Info("pipeline state changed",
			zap.Stringer("from", c.state),
			zap.Stringer("to", s),
		)
	}
	c.state = s
	metrics.PipelineState.WithLabelValues(c.machineID).Set(float64(s))
}

// Status returns a snapshot of the controller
func (c *Controller) Status() model.MachineStatus {
	s := model.MachineStatus{
		MachineID:      c.machineID,
		State:          c.state,
		BufferSize:     c.buffer.Len(),
		BufferCapacity: c.buffer.Cap(),
		Persisted:      c.persisted,
		FitFailures:    c.fitFailures,
		Processed:      c.processed,
		Skipped:        c.skipped,
		Anomalies:      c.anomalies,
		LastReadingAt:  c.lastReadingAt,
	}
	if c.classifier != nil {
		m := c.classifier.Model()
		trainedAt := m.TrainedAt
		s.ModelID = m.ID
		s.TrainedAt = &trainedAt
	}
	return s
}

func (c *Controller) publish() {
	metrics.TrainingBufferSize.WithLabelValues(c.machineID).Set(float64(c.buffer.Len()))
	if c.deps.Tracker != nil {
		c.deps.Tracker.UpdateStatus(c.Status())
	}
}
