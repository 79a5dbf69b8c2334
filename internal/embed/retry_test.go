package embed

import (
	"context"
	"testing"
	"time"

	kerrors "github.com/kioku-dev/kioku/internal/errors"
)

func TestWithRetry_SucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	cfg := RetryConfig{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}

	err := WithRetry(context.Background(), cfg, func() error {
		attempts++
		if attempts < 3 {
			return kerrors.New(kerrors.CodeEmbedNetwork, "transient", nil)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got: %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestWithRetry_NonRetryableFailsImmediately(t *testing.T) {
	attempts := 0
	cfg := DefaultRetryConfig()

	err := WithRetry(context.Background(), cfg, func() error {
		attempts++
		return kerrors.New(kerrors.CodeCapabilityMissing, "not retryable", nil)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("expected exactly 1 attempt for non-retryable error, got %d", attempts)
	}
}

func TestWithRetry_ExhaustsMaxRetries(t *testing.T) {
	attempts := 0
	cfg := RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}

	err := WithRetry(context.Background(), cfg, func() error {
		attempts++
		return kerrors.New(kerrors.CodeEmbedTimeout, "always fails", nil)
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts (1 initial + 2 retries), got %d", attempts)
	}
}

func TestWithRetry_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithRetry(ctx, DefaultRetryConfig(), func() error {
		t.Fatal("fn should not be called with an already-cancelled context")
		return nil
	})
	if !kerrors.IsCancelled(err) {
		t.Errorf("expected Cancelled error, got: %v", err)
	}
}
