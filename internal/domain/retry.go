// Package domain defines the entities, ports and error taxonomy of the
// puzzle generation pipeline.
package domain

import (
	"context"
	"fmt"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
)

// RetryConfig defines exponential backoff behavior for idempotent operations.
type RetryConfig struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int
	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration
	// MaxDelay caps the backoff delay.
	MaxDelay time.Duration
	// Multiplier is the exponential backoff multiplier.
	Multiplier float64
}

// DefaultRetryConfig returns a sensible default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 2 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

// Delay returns the backoff delay before retry number attempt (1-based):
// min(initial * multiplier^(attempt-1), cap).
func (c RetryConfig) Delay(attempt int) time.Duration {
	d := float64(c.InitialDelay)
	for i := 1; i < attempt; i++ {
		d *= c.Multiplier
	}
	if d > float64(c.MaxDelay) {
		d = float64(c.MaxDelay)
	}
	return time.Duration(d)
}

// WithRetry wraps a single idempotent operation with exponential backoff.
// Errors that cannot succeed on retry (quota exhaustion, fatal classification)
// are surfaced immediately via backoff.Permanent.
func WithRetry(ctx context.Context, op func() error, cfg RetryConfig) error {
	if cfg.MaxAttempts < 1 {
		return fmt.Errorf("%w: max attempts must be >= 1", ErrInvalidArgument)
	}
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = cfg.InitialDelay
	expo.MaxInterval = cfg.MaxDelay
	expo.Multiplier = cfg.Multiplier
	expo.RandomizationFactor = 0 // deterministic delays; callers own jitter policy

	wrapped := func() error {
		err := op()
		if err == nil {
			return nil
		}
		if !IsBackoffRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(cfg.MaxAttempts-1)), ctx)
	return backoff.Retry(wrapped, bo)
}
