package model

import "fmt"

// PipelineState is the lifecycle state of a machine's pipeline controller
type PipelineState int

const (
	StateUninitialized PipelineState = iota
	StateTraining
	StateReady
)

func (s PipelineState) String() string {
	switch s {
	case StateUninitialized:
		return "UNINITIALIZED"
	case StateTraining:
		return "TRAINING"
	case StateReady:
		return "READY"
	default:
		return fmt.Sprintf("PipelineState(%d)", int(s))
	}
}

// MarshalText lets the state render by name in JSON responses
func (s PipelineState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
