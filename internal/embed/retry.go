package embed

import (
	"context"
	"fmt"
	"time"

	kerrors "github.com/kioku-dev/kioku/internal/errors"
)

// RetryConfig configures exponential-backoff retry behavior for a
// capability call (embedding or chat completion per §4.8/§4.9).
type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   DefaultMaxRetries,
		InitialDelay: 1 * time.Second,
		MaxDelay:     16 * time.Second,
		Multiplier:   2.0,
	}
}

// WithRetry executes fn with exponential backoff, retrying up to
// MaxRetries times on error. Context cancellation surfaces immediately.
// A 429 response honours the Retry-After detail attached by the caller's
// *errors.Error instead of the computed backoff delay.
func WithRetry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return kerrors.Cancelled()
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !kerrors.IsRetryable(err) || attempt >= cfg.MaxRetries {
			break
		}

		wait := delay
		if retryAfter, ok := retryAfterDelay(err); ok {
			wait = retryAfter
		}

		select {
		case <-ctx.Done():
			return kerrors.Cancelled()
		case <-time.After(wait):
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return fmt.Errorf("failed after %d retries: %w", cfg.MaxRetries, lastErr)
}

func retryAfterDelay(err error) (time.Duration, bool) {
	e, ok := err.(*kerrors.Error)
	if !ok || e.Details == nil {
		return 0, false
	}
	raw, ok := e.Details["retry_after"]
	if !ok {
		return 0, false
	}
	if secs, perr := time.ParseDuration(raw + "s"); perr == nil && secs >= 0 {
		return secs, true
	}
	return 0, false
}
