package pipeline

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"greentwin/internal/model"
)

// DefaultRetryConfig replaces a config without a positive MaxAttempts
var DefaultRetryConfig = model.RetryConfig{
	MaxAttempts:       5,
	InitialDelay:      1 * time.Second,
	MaxDelay:          30 * time.Second,
	BackoffMultiplier: 2.0,
	Jitter:            true,
}

// Retry runs op until it succeeds, attempts run out or ctx is done. It is used
// to connect to external collaborators at startup, never on the per-reading path.
func Retry(ctx context.Context, cfg model.RetryConfig, log *zap.Logger, name string, op func(context.Context) error) error {
	if cfg.MaxAttempts <= 0 {
		cfg = DefaultRetryConfig
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if lastErr = op(ctx); lastErr == nil {
			if attempt > 1 {
				log.Info("connected after retry", zap.String("target", name), zap.Int("attempt", attempt))
			}
			return nil
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		delay := backoffDelay(cfg, attempt)
		log.Warn("connection attempt failed, retrying",
			zap.String("target", name),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", delay),
			zap.Error(lastErr),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s: %w (last error: %v)", name, ctx.Err(), lastErr)
		case <-timer.C:
		}
	}
	return fmt.Errorf("%s: giving up after %d attempts: %w", name, cfg.MaxAttempts, lastErr)
}

// backoffDelay returns the wait before the given attempt's successor
func backoffDelay(cfg model.RetryConfig, attempt int) time.Duration {
	multiplier := cfg.BackoffMultiplier
	if multiplier < 1 {
		multiplier = 1
	}
	delay := time.Duration(float64(cfg.InitialDelay) * math.Pow(multiplier, float64(attempt-1)))
	if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}

	// Add jitter if enabled: +/-10%
	if cfg.Jitter && delay > 0 {
		jitter := time.Duration(float64(delay) * 0.1 * (2*rand.Float64() - 1))
		delay += jitter
	}
	return delay
}
