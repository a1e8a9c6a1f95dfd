package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"greentwin/internal/config"
	"greentwin/internal/pipeline"
	"greentwin/internal/source/amqp"
	"greentwin/internal/source/mqtt"
)

func TestFlagsOverrideConfig(t *testing.T) {
	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--source", "csv", "--input", "readings.csv", "--sink", "log"}))

	loader := config.NewLoader("")
	require.NoError(t, bindFlags(cmd, loader.Viper()))
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "csv", cfg.Source.Type)
	assert.Equal(t, "readings.csv", cfg.Source.File.Path)
	assert.Equal(t, "log", cfg.Sink.Type)
	// unset flags keep the defaults
	assert.Equal(t, "file", cfg.Model.Store)
}

func TestEveryFlagIsBound(t *testing.T) {
	cmd := newRootCmd()
	for name := range flagKeys {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
}

func TestNewSource(t *testing.T) {
	cfg := config.DefaultConfig().Source
	log := zap.NewNop()

	cfg.Type = "mqtt"
	s, err := newSource(cfg, log)
	require.NoError(t, err)
	assert.IsType(t, &mqtt.Source{}, s)

	cfg.Type = "amqp"
	s, err = newSource(cfg, log)
	require.NoError(t, err)
	assert.IsType(t, &amqp.Source{}, s)
	_, isConnector := s.(connector)
	assert.True(t, isConnector)

	cfg.Type = "json"
	cfg.File.Path = "readings.json"
	s, err = newSource(cfg, log)
	require.NoError(t, err)
	assert.IsType(t, &pipeline.FileSource{}, s)

	cfg.Type = "kafka"
	_, err = newSource(cfg, log)
	assert.Error(t, err)
}
