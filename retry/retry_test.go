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

func transientOnly(err error) bool { return errors.Is(err, errTransient) }

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      2.0,
	}
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(3), transientOnly, func(context.Context) error {
		calls++
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesTransientThenSucceeds(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(3), transientOnly, func(context.Context) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_NonRetryableReturnsImmediately(t *testing.T) {
	fatal := errors.New("fatal")
	calls := 0
	err := Do(context.Background(), fastPolicy(3), transientOnly, func(context.Context) error {
		calls++
		return fatal
	})
	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, calls)

	var ex *ExhaustedError
	assert.False(t, errors.As(err, &ex))
}

func TestDo_ExhaustionWrapsLastError(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(3), transientOnly, func(context.Context) error {
		calls++
		return errTransient
	})
	assert.Equal(t, 3, calls)

	var ex *ExhaustedError
	require.ErrorAs(t, err, &ex)
	assert.Equal(t, 3, ex.Attempts)
	assert.ErrorIs(t, ex.LastError, errTransient)
	assert.ErrorIs(t, err, errTransient)
}

func TestDo_ZeroAttemptsMeansSingleTry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{}, transientOnly, func(context.Context) error {
		calls++
		return errTransient
	})
	assert.Equal(t, 1, calls)

	var ex *ExhaustedError
	require.ErrorAs(t, err, &ex)
	assert.Equal(t, 1, ex.Attempts)
}

func TestDo_ContextCancelAbortsBackoffWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{
		MaxAttempts:     3,
		InitialInterval: time.Hour,
		Multiplier:      2.0,
	}

	done := make(chan error, 1)
	go func() {
		done <- Do(ctx, p, transientOnly, func(context.Context) error {
			return errTransient
		})
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("retry did not abort on cancellation")
	}
}

func TestDo_CancelledContextNeverCalls(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, fastPolicy(3), transientOnly, func(context.Context) error {
		calls++
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, calls)
}

func TestInterval_GrowsAndCaps(t *testing.T) {
	p := Policy{
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     300 * time.Millisecond,
		Multiplier:      2.0,
	}
	assert.Equal(t, 100*time.Millisecond, interval(p, 1))
	assert.Equal(t, 200*time.Millisecond, interval(p, 2))
	assert.Equal(t, 300*time.Millisecond, interval(p, 3))
	assert.Equal(t, 300*time.Millisecond, interval(p, 4))
}

func TestInterval_JitterStaysWithinBounds(t *testing.T) {
	p := Policy{
		InitialInterval: 100 * time.Millisecond,
		Multiplier:      2.0,
		Jitter:          0.1,
	}
	for i := 0; i < 50; i++ {
		d := interval(p, 1)
		assert.GreaterOrEqual(t, d, 90*time.Millisecond)
		assert.LessOrEqual(t, d, 110*time.Millisecond)
	}
}
