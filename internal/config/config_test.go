package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "mqtt", cfg.Source.Type)
	assert.Equal(t, "factory/machine/01/sensor", cfg.Source.MQTT.Topic)

	assert.Equal(t, "influxdb", cfg.Sink.Type)
	assert.Equal(t, "energy_data", cfg.Sink.InfluxDB.Bucket)
	assert.Equal(t, 1024, cfg.Sink.QueueSize)

	assert.Equal(t, 30, cfg.Model.TrainingSize)
	assert.Equal(t, 0.10, cfg.Model.Contamination)
	assert.Equal(t, int64(42), cfg.Model.Seed)
	assert.Equal(t, []string{"current_amp"}, cfg.Model.Features)

	assert.Equal(t, 0.44, cfg.Derive.EmissionFactor)
	assert.Equal(t, 4.50, cfg.Derive.UnitPrice)

	assert.Empty(t, cfg.Validate())
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name      string
		modifyFn  func(*Config)
		wantError bool
		errorMsg  string
	}{
		{
			name:     "valid default config",
			modifyFn: func(cfg *Config) {},
		},
		{
			name:      "unknown source",
			modifyFn:  func(cfg *Config) { cfg.Source.Type = "kafka" },
			wantError: true,
			errorMsg:  "source.type",
		},
		{
			name:      "file source without path",
			modifyFn:  func(cfg *Config) { cfg.Source.Type = "csv" },
			wantError: true,
			errorMsg:  "source.file.path",
		},
		{
			name:      "training size too small",
			modifyFn:  func(cfg *Config) { cfg.Model.TrainingSize = 1 },
			wantError: true,
			errorMsg:  "model.training_size",
		},
		{
			name:      "contamination out of range",
			modifyFn:  func(cfg *Config) { cfg.Model.Contamination = 0.6 },
			wantError: true,
			errorMsg:  "model.contamination",
		},
		{
			name:      "unknown feature",
			modifyFn:  func(cfg *Config) { cfg.Model.Features = []string{"voltage_v"} },
			wantError: true,
			errorMsg:  "unknown feature",
		},
		{
			name:      "negative emission factor",
			modifyFn:  func(cfg *Config) { cfg.Derive.EmissionFactor = -1 },
			wantError: true,
			errorMsg:  "derive.emission_factor",
		},
		{
			name:      "zero sink queue",
			modifyFn:  func(cfg *Config) { cfg.Sink.QueueSize = 0 },
			wantError: true,
			errorMsg:  "sink.queue_size",
		},
		{
			name:      "bad log level",
			modifyFn:  func(cfg *Config) { cfg.Logging.Level = "verbose" },
			wantError: true,
			errorMsg:  "logging.level",
		},
		{
			name:      "bad report schedule",
			modifyFn:  func(cfg *Config) { cfg.Report.Schedule = "every tuesday" },
			wantError: true,
			errorMsg:  "report.schedule",
		},
		{
			name:     "report disabled",
			modifyFn: func(cfg *Config) { cfg.Report.Schedule = "" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modifyFn(cfg)

			errs := cfg.Validate()
			if !tt.wantError {
				assert.Empty(t, errs)
				return
			}
			require.NotEmpty(t, errs)
			found := false
			for _, err := range errs {
				if strings.Contains(err.Error(), tt.errorMsg) {
					found = true
				}
			}
			assert.True(t, found, "expected an error mentioning %q, got %v", tt.errorMsg, errs)
		})
	}
}

func TestLoaderDefaultsWithoutFile(t *testing.T) {
	cfg, err := NewLoader(filepath.Join(t.TempDir(), "missing.yaml")).Load()
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Model.TrainingSize)
	assert.Equal(t, 5*time.Second, cfg.Sink.WriteTimeout)
}

func TestLoaderReadsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "greentwin.yaml")
	yaml := `
source:
  type: amqp
  amqp:
    queue: readings
sink:
  type: sqlite
  sqlite:
    path: /tmp/gt.db
model:
  training_size: 50
  contamination: 0.05
  features: [current_amp, power_kw]
derive:
  emission_factor: 0.5
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "amqp", cfg.Source.Type)
	assert.Equal(t, "readings", cfg.Source.AMQP.Queue)
	assert.Equal(t, "sqlite", cfg.Sink.Type)
	assert.True(t, cfg.UsesSQLite())
	assert.Equal(t, 50, cfg.Model.TrainingSize)
	assert.Equal(t, 0.05, cfg.Model.Contamination)
	assert.Equal(t, []string{"current_amp", "power_kw"}, cfg.Model.Features)
	assert.Equal(t, 0.5, cfg.Derive.EmissionFactor)
	// untouched keys keep defaults
	assert.Equal(t, 4.50, cfg.Derive.UnitPrice)
}

func TestLoaderEnvOverride(t *testing.T) {
	t.Setenv("GREENTWIN_MODEL_TRAINING_SIZE", "12")
	t.Setenv("GREENTWIN_SINK_TYPE", "log")

	cfg, err := NewLoader("").Load()
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Model.TrainingSize)
	assert.Equal(t, "log", cfg.Sink.Type)
}

func TestLoaderRejectsInvalid(t *testing.T) {
	t.Setenv("GREENTWIN_MODEL_CONTAMINATION", "0.9")

	_, err := NewLoader("").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model.contamination")
}
