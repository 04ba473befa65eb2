package errors

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig(retries int) RetryConfig {
	return RetryConfig{
		MaxRetries:   retries,
		InitialDelay: time.Millisecond,
		MaxDelay:     10 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestRetrySucceedsAfterTransientError(t *testing.T) {
	// Given: a function that fails twice before succeeding
	attempts := 0
	fn := func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	}

	// When: retrying with a sufficient budget
	err := Retry(context.Background(), fastRetryConfig(3), fn)

	// Then: the third attempt succeeds
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryExhaustsBudget(t *testing.T) {
	// Given: a function that always fails
	attempts := 0
	cause := errors.New("still down")
	fn := func() error {
		attempts++
		return cause
	}

	// When: retrying twice
	err := Retry(context.Background(), fastRetryConfig(2), fn)

	// Then: the initial attempt plus two retries ran and the cause is wrapped
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.Contains(t, err.Error(), "after 2 retries")
	assert.ErrorIs(t, err, cause)
}

func TestRetryImmediateSuccessSkipsDelay(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 3, InitialDelay: time.Second, Multiplier: 2.0}

	start := time.Now()
	err := Retry(context.Background(), cfg, func() error { return nil })

	require.NoError(t, err)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestRetryStopsOnContextCancellation(t *testing.T) {
	// Given: a cancelled context
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := Retry(ctx, fastRetryConfig(5), func() error {
		attempts++
		return errors.New("transient")
	})

	// Then: the function never runs
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, attempts)
}

func TestRetryAbortsDuringWait(t *testing.T) {
	// Given: a short deadline and a long backoff
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	cfg := RetryConfig{MaxRetries: 5, InitialDelay: time.Second, Multiplier: 2.0}
	start := time.Now()
	err := Retry(ctx, cfg, func() error { return errors.New("transient") })

	// Then: the wait is cut short by the deadline
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestRetryWithResultReturnsValue(t *testing.T) {
	attempts := 0
	result, err := RetryWithResult(context.Background(), fastRetryConfig(2), func() (string, error) {
		attempts++
		if attempts == 1 {
			return "", errors.New("transient")
		}
		return "embedded", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "embedded", result)
}

func TestRetryWithResultReturnsZeroOnFailure(t *testing.T) {
	result, err := RetryWithResult(context.Background(), fastRetryConfig(1), func() ([]float32, error) {
		return []float32{1, 2}, errors.New("bad vector")
	})

	require.Error(t, err)
	assert.Nil(t, result)
}

func TestRetryJitteredWaitsStayBounded(t *testing.T) {
	cfg := RetryConfig{
		MaxRetries:   3,
		InitialDelay: 4 * time.Millisecond,
		MaxDelay:     8 * time.Millisecond,
		Multiplier:   2.0,
		Jitter:       true,
	}

	// Jittered waits land in [delay/2, delay); the whole run stays well
	// under the sum of the nominal delays.
	start := time.Now()
	err := Retry(context.Background(), cfg, func() error { return errors.New("transient") })

	require.Error(t, err)
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 6*time.Millisecond)
	assert.Less(t, elapsed, time.Second)
}

func TestDefaultRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig()

	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.InitialDelay)
	assert.Equal(t, 16*time.Second, cfg.MaxDelay)
	assert.Equal(t, 2.0, cfg.Multiplier)
	assert.False(t, cfg.Jitter)
}
