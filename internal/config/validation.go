package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/robfig/cron/v3"
)

var (
	sourceTypes = []string{"mqtt", "amqp", "csv", "json"}
	sinkTypes   = []string{"influxdb", "postgres", "sqlite", "log"}
	storeTypes  = []string{"file", "sqlite", "s3", "redis"}
	featureKeys = []string{"current_amp", "power_kw"}
	logLevels   = []string{"debug", "info", "warn", "error"}
	logFormats  = []string{"json", "console"}
)

// Validate returns every violation found in the configuration.
func (c *Config) Validate() []error {
	var errs []error

	if !oneOf(c.Source.Type, sourceTypes) {
		errs = append(errs, fmt.Errorf("source.type must be one of %v, got %q", sourceTypes, c.Source.Type))
	}
	switch c.Source.Type {
	case "mqtt":
		if c.Source.MQTT.Broker == "" || c.Source.MQTT.Topic == "" {
			errs = append(errs, fmt.Errorf("source.mqtt.broker and source.mqtt.topic are required"))
		}
		if c.Source.MQTT.QoS < 0 || c.Source.MQTT.QoS > 2 {
			errs = append(errs, fmt.Errorf("source.mqtt.qos must be 0, 1 or 2"))
		}
	case "amqp":
		if c.Source.AMQP.URL == "" || c.Source.AMQP.Queue == "" {
			errs = append(errs, fmt.Errorf("source.amqp.url and source.amqp.queue are required"))
		}
	case "csv", "json":
		if c.Source.File.Path == "" {
			errs = append(errs, fmt.Errorf("source.file.path is required for %s sources", c.Source.Type))
		}
	}

	if !oneOf(c.Sink.Type, sinkTypes) {
		errs = append(errs, fmt.Errorf("sink.type must be one of %v, got %q", sinkTypes, c.Sink.Type))
	}
	if c.Sink.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("sink.queue_size must be positive"))
	}
	if c.Sink.WriteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("sink.write_timeout must be positive"))
	}

	if !oneOf(c.Model.Store, storeTypes) {
		errs = append(errs, fmt.Errorf("model.store must be one of %v, got %q", storeTypes, c.Model.Store))
	}
	if c.Model.Store == "file" && c.Model.Path == "" {
		errs = append(errs, fmt.Errorf("model.path is required for the file model store"))
	}
	if c.Model.TrainingSize < 2 {
		errs = append(errs, fmt.Errorf("model.training_size must be at least 2"))
	}
	if c.Model.Contamination <= 0 || c.Model.Contamination >= 0.5 {
		errs = append(errs, fmt.Errorf("model.contamination must be in (0, 0.5), got %v", c.Model.Contamination))
	}
	if c.Model.Trees <= 0 {
		errs = append(errs, fmt.Errorf("model.trees must be positive"))
	}
	if len(c.Model.Features) == 0 {
		errs = append(errs, fmt.Errorf("model.features must name at least one feature"))
	}
	for _, f := range c.Model.Features {
		if !oneOf(f, featureKeys) {
			errs = append(errs, fmt.Errorf("model.features: unknown feature %q (known: %v)", f, featureKeys))
		}
	}

	if c.Derive.EmissionFactor < 0 || math.IsNaN(c.Derive.EmissionFactor) || math.IsInf(c.Derive.EmissionFactor, 0) {
		errs = append(errs, fmt.Errorf("derive.emission_factor must be a finite non-negative number"))
	}
	if c.Derive.UnitPrice < 0 || math.IsNaN(c.Derive.UnitPrice) || math.IsInf(c.Derive.UnitPrice, 0) {
		errs = append(errs, fmt.Errorf("derive.unit_price must be a finite non-negative number"))
	}

	if c.Pipeline.MaxMachines <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.max_machines must be positive"))
	}
	if c.Pipeline.MachineQueue <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.machine_queue must be positive"))
	}

	if c.Server.Enabled && c.Server.Addr == "" {
		errs = append(errs, fmt.Errorf("server.addr is required when the server is enabled"))
	}

	if c.Report.Schedule != "" {
		if _, err := cron.ParseStandard(c.Report.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("report.schedule: %w", err))
		}
	}

	if c.Retry.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("retry.max_attempts must be positive"))
	}

	if !oneOf(strings.ToLower(c.Logging.Level), logLevels) {
		errs = append(errs, fmt.Errorf("logging.level must be one of %v", logLevels))
	}
	if !oneOf(c.Logging.Format, logFormats) {
		errs = append(errs, fmt.Errorf("logging.format must be one of %v", logFormats))
	}

	return errs
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
