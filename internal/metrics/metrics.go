package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Engine metrics for production monitoring
var (
	// Ingestion metrics
	ReadingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greentwin_readings_total",
			Help: "Total number of readings handled, by outcome",
		},
		[]string{"machine_id", "outcome"}, // outcome: processed/skipped/fit_failed/rejected
	)

	AnomaliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greentwin_anomalies_total",
			Help: "Total number of readings classified as anomalous",
		},
		[]string{"machine_id"},
	)

	// Pipeline state metrics
	PipelineState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "greentwin_pipeline_state",
			Help: "Pipeline state per machine (0 uninitialized, 1 training, 2 ready)",
		},
		[]string{"machine_id"},
	)

	TrainingBufferSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "greentwin_training_buffer_size",
			Help: "Number of samples currently buffered for training",
		},
		[]string{"machine_id"},
	)

	// Model metrics
	ModelFitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greentwin_model_fits_total",
			Help: "Total number of model fit attempts",
		},
		[]string{"result"}, // success/failure
	)

	ModelFitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "greentwin_model_fit_duration_seconds",
			Help:    "Model fit duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
		},
	)

	ModelStoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greentwin_model_store_errors_total",
			Help: "Total number of model store failures",
		},
		[]string{"op"}, // load/save
	)

	// Sink metrics
	SinkWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greentwin_sink_writes_total",
			Help: "Total number of sink writes",
		},
		[]string{"kind", "result"}, // kind: metrics/verdict, result: success/error
	)

	SinkQueueDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greentwin_sink_queue_dropped_total",
			Help: "Records dropped because the sink queue was full",
		},
		[]string{"kind"},
	)

	SinkQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "greentwin_sink_queue_depth",
			Help: "Records waiting in the sink queue",
		},
	)

	// API metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greentwin_http_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"route", "method", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "greentwin_http_request_duration_seconds",
			Help:    "API request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)
