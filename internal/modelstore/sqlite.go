package modelstore

import (
	"context"
	"errors"
	"fmt"

	"greentwin/internal/anomaly"
	"greentwin/internal/store"
)

// SQLiteStore keeps model blobs in the model_artifacts table
type SQLiteStore struct {
	db *store.DB
}

func NewSQLiteStore(db *store.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Load(ctx context.Context, machineID string) (*anomaly.Model, error) {
	blob, err := s.db.LoadModel(ctx, machineID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load model row: %w", err)
	}
	return decode(machineID, blob)
}

func (s *SQLiteStore) Save(ctx context.Context, machineID string, m *anomaly.Model) error {
	blob, err := m.MarshalBinary()
	if err != nil {
		return err
	}
	if err := s.db.SaveModel(ctx, machineID, m.ID, blob, m.TrainedAt); err != nil {
		return fmt.Errorf("save model row: %w", err)
	}
	return nil
}

// Close is a no-op; the database is owned by the caller.
func (s *SQLiteStore) Close() error { return nil }
