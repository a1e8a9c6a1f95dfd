// Package modelstore persists fitted anomaly models per machine.
package modelstore

import (
	"context"
	"errors"
	"fmt"

	"greentwin/internal/anomaly"
	"greentwin/internal/config"
	"greentwin/internal/store"
)

// ErrNotFound is returned by Load when no model has been persisted for a machine
var ErrNotFound = errors.New("model not found")

// Store is the persistence boundary for fitted models
type Store interface {
	// Load returns the persisted model for a machine, ErrNotFound when there is none,
	// or an error wrapping anomaly.ErrCorruptModel when the artifact cannot be decoded.
	Load(ctx context.Context, machineID string) (*anomaly.Model, error)
	// Save persists a model for a machine, replacing any previous artifact.
	Save(ctx context.Context, machineID string, m *anomaly.Model) error
	Close() error
}

// New creates the store selected by cfg.Store. db is required only by the sqlite backend.
func New(ctx context.Context, cfg config.ModelConfig, db *store.DB) (Store, error) {
	switch cfg.Store {
	case "file", "":
		return NewFileStore(cfg.Path), nil
	case "sqlite":
		if db == nil {
			return nil, errors.New("sqlite model store requires an open database")
		}
		return NewSQLiteStore(db), nil
	case "s3":
		return NewS3Store(ctx, cfg.S3.Endpoint, cfg.S3.AccessKey, cfg.S3.SecretKey, cfg.S3.Bucket, cfg.S3.Prefix, cfg.S3.UseSSL)
	case "redis":
		return NewRedisStore(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.KeyPrefix)
	default:
		return nil, fmt.Errorf("unknown model store %q", cfg.Store)
	}
}

func decode(machineID string, blob []byte) (*anomaly.Model, error) {
	m, err := anomaly.Unmarshal(blob)
	if err != nil {
		return nil, fmt.Errorf("decode model for %s: %w", machineID, err)
	}
	return m, nil
}
