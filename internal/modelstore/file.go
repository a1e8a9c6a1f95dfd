package modelstore

import (
	"context"
	"errors"
	"fmt"
	"os"

	"greentwin/internal/anomaly"
	"greentwin/pkg/utils"
)

// FileStore keeps one model file per machine. The path template may contain
// {machine_id}; without it every machine shares one file, which only suits
// single-machine deployments.
type FileStore struct {
	pathTemplate string
}

func NewFileStore(pathTemplate string) *FileStore {
	return &FileStore{pathTemplate: pathTemplate}
}

// Path returns the artifact path for a machine
func (s *FileStore) Path(machineID string) string {
	return utils.ExpandMachinePath(s.pathTemplate, machineID)
}

func (s *FileStore) Load(_ context.Context, machineID string) (*anomaly.Model, error) {
	blob, err := os.ReadFile(s.Path(machineID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read model file: %w", err)
	}
	return decode(machineID, blob)
}

func (s *FileStore) Save(_ context.Context, machineID string, m *anomaly.Model) error {
	blob, err := m.MarshalBinary()
	if err != nil {
		return err
	}
	if err := utils.AtomicWriteFile(s.Path(machineID), blob, 0o644); err != nil {
		return fmt.Errorf("write model file: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }
