package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}
}

var (
	errDeadlock  = &pgconn.PgError{Code: "40P01", Message: "deadlock detected"}
	errUniqueKey = &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"}
)

func TestDo_RetriesTransientUntilSuccess(t *testing.T) {
	tests := []struct {
		name      string
		attempts  int
		failures  int
		err       error
		wantCalls int
		wantErr   bool
	}{
		{"first attempt succeeds", 2, 0, errDeadlock, 1, false},
		{"deadlock retried once", 2, 1, errDeadlock, 2, false},
		{"deadlock exhausts attempts", 2, 5, errDeadlock, 2, true},
		{"constraint violation not retried", 3, 5, errUniqueKey, 1, true},
		{"marked transient retried", 3, 2, NewTransientError(errors.New("conn reset"), "08006"), 3, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int
			err := Do(context.Background(), fastRetry(tt.attempts), func(context.Context) error {
				calls++
				if calls <= tt.failures {
					return tt.err
				}
				return nil
			})
			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestDo_DefaultRetriesOnce(t *testing.T) {
	cfg := DefaultRetryConfig()
	cfg.InitialBackoff = time.Millisecond

	var calls int
	err := Do(context.Background(), cfg, func(context.Context) error {
		calls++
		return errDeadlock
	})
	require.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestDo_CancelledContextStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fastRetry(5)
	cfg.InitialBackoff = time.Hour
	cfg.MaxBackoff = time.Hour

	var calls int
	done := make(chan error, 1)
	go func() {
		done <- Do(ctx, cfg, func(context.Context) error {
			calls++
			return errDeadlock
		})
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, errDeadlock)
		assert.Equal(t, 1, calls)
	case <-time.After(time.Second):
		t.Fatal("retry did not stop on cancellation")
	}
}

func TestDo_ShouldRetryOverride(t *testing.T) {
	cfg := fastRetry(3)
	cfg.ShouldRetry = func(err error) bool { return errors.Is(err, errUniqueKey) }

	var calls int
	err := Do(context.Background(), cfg, func(context.Context) error {
		calls++
		return errUniqueKey
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoVal(t *testing.T) {
	var calls int
	id, err := DoVal(context.Background(), fastRetry(2), func(context.Context) (int64, error) {
		calls++
		if calls == 1 {
			return 0, errDeadlock
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	id, err = DoVal(context.Background(), fastRetry(2), func(context.Context) (int64, error) {
		return 7, errUniqueKey
	})
	require.Error(t, err)
	assert.Zero(t, id)
}

func TestComputeBackoff(t *testing.T) {
	cfg := applyDefaults(RetryConfig{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     time.Second,
		Multiplier:     2,
	})
	assert.Equal(t, 100*time.Millisecond, computeBackoff(0, cfg))
	assert.Equal(t, 200*time.Millisecond, computeBackoff(1, cfg))
	assert.Equal(t, 400*time.Millisecond, computeBackoff(2, cfg))
	assert.Equal(t, time.Second, computeBackoff(6, cfg))

	cfg.JitterFraction = 0.25
	for i := 0; i < 50; i++ {
		d := computeBackoff(1, cfg)
		assert.GreaterOrEqual(t, d, 150*time.Millisecond)
		assert.LessOrEqual(t, d, 250*time.Millisecond)
	}
}

func TestRetryLogger(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	cfg := fastRetry(2)
	cfg.OnRetry = RetryLogger(zap.New(core), "apply")

	_ = Do(context.Background(), cfg, func(context.Context) error { return errDeadlock })

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "retrying after transient error", entry.Message)
	assert.Equal(t, "apply", entry.ContextMap()["operation"])
	assert.Equal(t, int64(1), entry.ContextMap()["attempt"])
}

func TestFromRetryConfig(t *testing.T) {
	cfg := FromRetryConfig(3, 50, 0)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 50*time.Millisecond, cfg.InitialBackoff)
	assert.Equal(t, DefaultRetryConfig().MaxBackoff, cfg.MaxBackoff)

	assert.Equal(t, DefaultRetryConfig().MaxAttempts, FromRetryConfig(0, 0, 0).MaxAttempts)
}
