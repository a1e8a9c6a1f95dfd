package model

import "time"

// ErrorDetail represents a detailed error with context
type ErrorDetail struct {
	ID        string    `json:"id"`
	Stage     string    `json:"stage"` // "ingest", "validate", "derive", "train", "classify", "persist", "sink"
	MachineID string    `json:"machine_id,omitempty"`
	Message   string    `json:"message"`
	Severity  string    `json:"severity"` // "low", "medium", "high", "critical"
	Timestamp time.Time `json:"timestamp"`
}
