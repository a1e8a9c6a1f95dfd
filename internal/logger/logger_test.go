package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greentwin/internal/config"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	cfg := config.DefaultConfig().Logging
	cfg.Level = "loud"

	_, err := New(cfg)
	assert.Error(t, err)
}

func TestNewWritesRotatingFile(t *testing.T) {
	cfg := config.DefaultConfig().Logging
	cfg.File = filepath.Join(t.TempDir(), "engine.log")
	cfg.Format = "console"

	log, err := New(cfg)
	require.NoError(t, err)

	log.Info("model fitted")
	_ = log.Sync()

	data, err := os.ReadFile(cfg.File)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"model fitted"`)
}
