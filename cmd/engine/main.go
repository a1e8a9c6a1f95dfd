// @title GreenTwin Engine API
// @version 1.0
// @description Read-only view of per-machine anomaly detection state and sustainability totals.
// @BasePath /api/v1
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"greentwin/internal/config"
	"greentwin/internal/logger"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// flagKeys maps command-line flags to configuration keys
var flagKeys = map[string]string{
	"source":      "source.type",
	"input":       "source.file.path",
	"broker":      "source.mqtt.broker",
	"topic":       "source.mqtt.topic",
	"amqp-url":    "source.amqp.url",
	"sink":        "sink.type",
	"model-store": "model.store",
	"model-path":  "model.path",
	"addr":        "server.addr",
	"log-level":   "logging.level",
	"log-format":  "logging.format",
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "engine",
		Short:         "Streaming per-machine anomaly detection and sustainability metrics",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loader := config.NewLoader(configPath)
			if err := bindFlags(cmd, loader.Viper()); err != nil {
				return err
			}
			cfg, err := loader.Load()
			if err != nil {
				return err
			}

			log, err := logger.New(cfg.Logging)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer log.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log.Info("starting engine",
				zap.String("version", version),
				zap.String("source", cfg.Source.Type),
				zap.String("sink", cfg.Sink.Type),
				zap.String("model_store", cfg.Model.Store),
			)
			return run(ctx, cfg, log)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	f.String("source", "", "message source: mqtt, amqp, csv or json")
	f.String("input", "", "file path or URL for csv/json replay")
	f.String("broker", "", "MQTT broker URL")
	f.String("topic", "", "MQTT topic")
	f.String("amqp-url", "", "AMQP broker URL")
	f.String("sink", "", "time-series sink: influxdb, postgres, sqlite or log")
	f.String("model-store", "", "model store: file, sqlite, s3 or redis")
	f.String("model-path", "", "model file path, may contain {machine_id}")
	f.String("addr", "", "status API listen address")
	f.String("log-level", "", "log level: debug, info, warn or error")
	f.String("log-format", "", "log format: json or console")

	return cmd
}

// bindFlags lets flags that were set on the command line override every other source
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}
