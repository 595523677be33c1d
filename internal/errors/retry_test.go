package errors

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), fastRetryConfig(), func() error {
		attempts++
		if attempts < 3 {
			return Transient("temporarily down", nil)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetry_PermanentErrorNotRetried(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), fastRetryConfig(), func() error {
		attempts++
		return Permanent("bad input", nil)
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, ErrCodeInvalidInput, GetCode(err))
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), fastRetryConfig(), func() error {
		attempts++
		return Transient("always down", nil)
	})

	require.Error(t, err)
	assert.Equal(t, 4, attempts) // initial + 3 retries
	assert.Contains(t, err.Error(), "failed after 3 retries")
}

func TestRetry_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, fastRetryConfig(), func() error {
		return Transient("down", nil)
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryWithResult_ReturnsValue(t *testing.T) {
	attempts := 0
	got, err := RetryWithResult(context.Background(), fastRetryConfig(), func() (int, error) {
		attempts++
		if attempts < 2 {
			return 0, Transient("flaky", nil)
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, got)
}
