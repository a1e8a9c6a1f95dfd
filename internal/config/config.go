// Package config loads greentwin engine configuration.
//
// Sources, highest priority first:
//  1. CLI flags bound by the cobra commands
//  2. Environment variables (GREENTWIN_* prefix, "." replaced by "_")
//  3. A .env file in the working directory (loaded into the environment)
//  4. YAML config file (optional)
//  5. Built-in defaults
package config

import (
	"time"

	"greentwin/internal/model"
)

// Config contains every recognized option of the engine
type Config struct {
	Source   SourceConfig
	Sink     SinkConfig
	Model    ModelConfig
	Derive   DeriveConfig
	Pipeline PipelineConfig
	Server   ServerConfig
	Report   ReportConfig
	Logging  LoggingConfig
	Retry    model.RetryConfig
}

// SourceConfig selects and configures the message source
type SourceConfig struct {
	Type string // mqtt, amqp, csv, json

	MQTT struct {
		Broker   string
		Topic    string
		ClientID string
		QoS      int
		Username string
		Password string
	}

	AMQP struct {
		URL        string
		Exchange   string
		RoutingKey string
		Queue      string
	}

	File struct {
		Path string
	}
}

// SinkConfig selects and configures the time-series sink
type SinkConfig struct {
	Type         string // influxdb, postgres, sqlite, log
	QueueSize    int
	WriteTimeout time.Duration

	InfluxDB struct {
		URL    string
		Token  string
		Org    string
		Bucket string
	}

	Postgres struct {
		DSN string
	}

	SQLite struct {
		Path string
	}
}

// ModelConfig configures training and model persistence
type ModelConfig struct {
	Store         string // file, sqlite, s3, redis
	Path          string // file store path template, may contain {machine_id}
	TrainingSize  int
	Contamination float64
	Seed          int64
	Trees         int
	Features      []string
	SaveTimeout   time.Duration

	S3 struct {
		Endpoint  string
		AccessKey string
		SecretKey string
		Bucket    string
		UseSSL    bool
		Prefix    string
	}

	Redis struct {
		Addr      string
		Password  string
		DB        int
		KeyPrefix string
	}
}

// DeriveConfig holds the fixed emission and price factors
type DeriveConfig struct {
	EmissionFactor float64 // kg CO2e per kWh
	UnitPrice      float64 // major currency units per kWh
}

// PipelineConfig bounds per-machine fan-out
type PipelineConfig struct {
	MaxMachines  int
	MachineQueue int
}

// ServerConfig configures the status API
type ServerConfig struct {
	Enabled bool
	Addr    string
}

// ReportConfig schedules the summary snapshot job
type ReportConfig struct {
	Schedule string
}

// LoggingConfig configures zap and optional file rotation
type LoggingConfig struct {
	Level      string
	Format     string
	File       string
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

// UsesSQLite reports whether any component needs the shared sqlite database
func (c *Config) UsesSQLite() bool {
	return c.Sink.Type == "sqlite" || c.Model.Store == "sqlite"
}
