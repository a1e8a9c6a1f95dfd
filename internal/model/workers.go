package model

import "time"

// MachineStatus is a point-in-time view of a per-machine worker
type MachineStatus struct {
	MachineID      string        `json:"machine_id"`
	State          PipelineState `json:"state"`
	BufferSize     int           `json:"buffer_size"`
	BufferCapacity int           `json:"buffer_capacity"`
	ModelID        string        `json:"model_id,omitempty"`
	TrainedAt      *time.Time    `json:"trained_at,omitempty"`
	Persisted      bool          `json:"persisted"`
	FitFailures    int           `json:"fit_failures"`
	Processed      int64         `json:"processed"`
	Skipped        int64         `json:"skipped"`
	Anomalies      int64         `json:"anomalies"`
	LastReadingAt  time.Time     `json:"last_reading_at"`
}
