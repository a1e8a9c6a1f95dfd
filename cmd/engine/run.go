package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"greentwin/internal/api"
	"greentwin/internal/api/handler"
	"greentwin/internal/config"
	"greentwin/internal/modelstore"
	"greentwin/internal/pipeline"
	"greentwin/internal/report"
	"greentwin/internal/sink"
	"greentwin/internal/source/amqp"
	"greentwin/internal/source/mqtt"
	"greentwin/internal/store"
	"greentwin/pkg/router"
)

const errorHistory = 200

// connector is implemented by sources that dial a broker before Run
type connector interface {
	Connect(ctx context.Context) error
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	var db *store.DB
	if cfg.UsesSQLite() {
		var err error
		db, err = store.Open(cfg.Sink.SQLite.Path)
		if err != nil {
			return err
		}
		defer db.Close()
	}

	var models modelstore.Store
	err := pipeline.Retry(ctx, cfg.Retry, log, "model store", func(ctx context.Context) error {
		var err error
		models, err = modelstore.New(ctx, cfg.Model, db)
		return err
	})
	if err != nil {
		return fmt.Errorf("model store: %w", err)
	}
	defer models.Close()

	var out sink.Sink
	err = pipeline.Retry(ctx, cfg.Retry, log, "sink", func(ctx context.Context) error {
		var err error
		out, err = sink.New(ctx, cfg.Sink, db, log)
		return err
	})
	if err != nil {
		return fmt.Errorf("sink: %w", err)
	}
	defer out.Close()

	tracker := pipeline.NewTracker(errorHistory)
	aggregator := pipeline.NewAggregator()
	exporter := pipeline.NewExporter(out, cfg.Sink.QueueSize, cfg.Sink.WriteTimeout, tracker, log)

	opts := pipeline.OptionsFromConfig(cfg)
	deps := pipeline.Dependencies{
		Store:      models,
		Emitter:    exporter,
		Tracker:    tracker,
		Aggregator: aggregator,
		Logger:     log,
	}
	dispatcher := pipeline.NewDispatcher(func(machineID string) *pipeline.Controller {
		return pipeline.NewController(machineID, opts, deps)
	}, cfg.Pipeline.MaxMachines, cfg.Pipeline.MachineQueue, tracker, log)

	source, err := newSource(cfg.Source, log)
	if err != nil {
		return err
	}
	if c, ok := source.(connector); ok {
		if err := pipeline.Retry(ctx, cfg.Retry, log, "source", c.Connect); err != nil {
			return fmt.Errorf("source: %w", err)
		}
	}

	if cfg.Report.Schedule != "" {
		var snapshots report.SnapshotStore
		if db != nil {
			snapshots = db
		}
		rep, err := report.New(cfg.Report.Schedule, aggregator, snapshots, log)
		if err != nil {
			return err
		}
		rep.Start()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			rep.Stop(stopCtx)
			// final snapshot so totals survive the restart
			if err := rep.RunOnce(stopCtx); err != nil {
				log.Warn("final report failed", zap.Error(err))
			}
		}()
	}

	serverCtx, stopServer := context.WithCancel(context.Background())
	serverDone := make(chan struct{})
	if cfg.Server.Enabled {
		var snapshots handler.SnapshotSource
		if db != nil {
			snapshots = db
		}
		h := handler.New(version, tracker, aggregator, snapshots)
		color := cfg.Logging.Format == "console"
		go func() {
			defer close(serverDone)
			if err := router.Serve(serverCtx, cfg.Server.Addr, api.NewRouter(h, log, color), log); err != nil {
				log.Error("api server failed", zap.Error(err))
			}
		}()
	} else {
		close(serverDone)
	}
	defer func() {
		stopServer()
		<-serverDone
	}()

	err = pipeline.New(source, dispatcher, exporter, 0, log).Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("engine stopped", zap.Int("machines", dispatcher.Machines()))
	return nil
}

func newSource(cfg config.SourceConfig, log *zap.Logger) (pipeline.Source, error) {
	switch cfg.Type {
	case "mqtt":
		return mqtt.New(cfg, log), nil
	case "amqp":
		return amqp.New(cfg, log), nil
	case "csv", "json":
		return pipeline.NewFileSource(cfg.File.Path, cfg.Type, log), nil
	default:
		return nil, fmt.Errorf("unknown source type %q", cfg.Type)
	}
}
