package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSleeper struct {
	delays []time.Duration
}

func (r *recordingSleeper) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func TestRetrySucceedsAfterTwoFailures(t *testing.T) {
	rec := &recordingSleeper{}
	r := &RetryConfig{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond, Logger: NewNopLogger(), Sleep: rec.sleep}

	calls := 0
	err := r.Do(context.Background(), "flaky", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("boom")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	require.Len(t, rec.delays, 2)
	assert.Equal(t, 100*time.Millisecond, rec.delays[0])
	assert.Equal(t, 200*time.Millisecond, rec.delays[1])
	assert.Greater(t, rec.delays[1], rec.delays[0])
}

func TestRetryReturnsLastErrorUnchanged(t *testing.T) {
	rec := &recordingSleeper{}
	r := &RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, Sleep: rec.sleep}

	last := errors.New("third")
	errs := []error{errors.New("first"), errors.New("second"), last}
	calls := 0
	err := r.Do(context.Background(), "always-fails", func(context.Context) error {
		e := errs[calls]
		calls++
		return e
	})

	assert.Same(t, last, err)
	assert.Equal(t, 3, calls)
	assert.Len(t, rec.delays, 2, "no wait after the final attempt")
}

func TestRetryStopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := &RetryConfig{MaxAttempts: 5, BaseDelay: time.Hour}
	want := errors.New("down")
	calls := 0
	err := r.Do(ctx, "cancelled", func(context.Context) error {
		calls++
		return want
	})

	assert.ErrorIs(t, err, want)
	assert.Equal(t, 1, calls)
}

func TestRetryZeroAttemptsRunsOnce(t *testing.T) {
	r := &RetryConfig{}
	calls := 0
	_ = r.Do(context.Background(), "once", func(context.Context) error {
		calls++
		return errors.New("x")
	})
	assert.Equal(t, 1, calls)
}
