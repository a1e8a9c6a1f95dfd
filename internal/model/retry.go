package model

import "time"

// RetryConfig defines backoff behavior for connecting to external collaborators
type RetryConfig struct {
	MaxAttempts       int           `json:"max_attempts" mapstructure:"max_attempts"`
	InitialDelay      time.Duration `json:"initial_delay" mapstructure:"initial_delay"`
	MaxDelay          time.Duration `json:"max_delay" mapstructure:"max_delay"`
	BackoffMultiplier float64       `json:"backoff_multiplier" mapstructure:"multiplier"`
	Jitter            bool          `json:"jitter" mapstructure:"jitter"`
}
