package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")

func TestDo_SucceedsAfterRetries(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Config{MaxAttempts: 3}, func(int) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_Exhausted(t *testing.T) {
	err := Do(context.Background(), Config{MaxAttempts: 2}, func(int) error { return errTransient })

	var ex *ExhaustedError
	require.ErrorAs(t, err, &ex)
	assert.Equal(t, 2, ex.Attempts)
	assert.ErrorIs(t, err, errTransient)
}

func TestDo_StopsOnNonRetryable(t *testing.T) {
	fatal := errors.New("fatal")
	calls := 0
	err := Do(context.Background(), Config{
		MaxAttempts: 5,
		RetryIf:     func(err error) bool { return errors.Is(err, errTransient) },
	}, func(int) error {
		calls++
		return fatal
	})
	assert.Same(t, fatal, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelledDuringDelay(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := Do(ctx, Config{MaxAttempts: 3, Delay: func(int) time.Duration { return time.Second }}, func(int) error {
		return errTransient
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLinear(t *testing.T) {
	d := Linear(time.Second)
	assert.Equal(t, time.Second, d(0))
	assert.Equal(t, 2*time.Second, d(1))
	assert.Equal(t, 3*time.Second, d(2))
}

func TestDo_ZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	_ = Do(context.Background(), Config{}, func(int) error { calls++; return errTransient })
	assert.Equal(t, 1, calls)
}
