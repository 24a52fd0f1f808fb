package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steadyp/steady-client/internal/apierrors"
	"github.com/steadyp/steady-client/internal/breaker"
)

func newTestExecutor(t *testing.T) (*Executor, *[]time.Duration) {
	t.Helper()

	var delays []time.Duration
	b := breaker.New(breaker.Config{
		Name:             "test-backend",
		FailureThreshold: 5,
		MinimumRequests:  10,
		OpenTimeout:      60 * time.Second,
	})
	e := NewExecutor(b,
		WithSleep(func(ctx context.Context, d time.Duration) error {
			delays = append(delays, d)
			return nil
		}),
	)
	return e, &delays
}

func noJitterPolicy(maxRetries int) Policy {
	return Policy{
		MaxRetries:      maxRetries,
		BaseDelay:       300 * time.Millisecond,
		MaxDelay:        10 * time.Second,
		ExponentialBase: 2.0,
	}
}

func TestDoReturnsFirstSuccess(t *testing.T) {
	e, delays := newTestExecutor(t)

	calls := 0
	result, err := Do(context.Background(), e, noJitterPolicy(3), "test", func(ctx context.Context) (string, error) {
		calls++
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *delays)
}

func TestDoRetriesTransientFailures(t *testing.T) {
	e, delays := newTestExecutor(t)

	calls := 0
	result, err := Do(context.Background(), e, noJitterPolicy(3), "test", func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", apierrors.NewNetworkError("connection reset", nil)
		}
		return "recovered", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "recovered", result)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{300 * time.Millisecond, 600 * time.Millisecond}, *delays)
}

func TestDoExhaustsAttemptBudget(t *testing.T) {
	e, delays := newTestExecutor(t)

	calls := 0
	_, err := Do(context.Background(), e, noJitterPolicy(2), "test", func(ctx context.Context) (string, error) {
		calls++
		return "", apierrors.NewTimeoutError("deadline", nil)
	})

	require.Error(t, err)
	se, ok := apierrors.AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.KindTimeout, se.Kind)
	assert.Equal(t, 3, calls)
	assert.Len(t, *delays, 2)
}

func TestDoZeroRetriesMeansSingleAttempt(t *testing.T) {
	e, delays := newTestExecutor(t)

	calls := 0
	_, err := Do(context.Background(), e, noJitterPolicy(0), "test", func(ctx context.Context) (string, error) {
		calls++
		return "", apierrors.NewNetworkError("down", nil)
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *delays)
}

func TestDoDoesNotRetryClientErrors(t *testing.T) {
	e, delays := newTestExecutor(t)

	calls := 0
	_, err := Do(context.Background(), e, noJitterPolicy(3), "test", func(ctx context.Context) (string, error) {
		calls++
		return "", apierrors.NewHTTPError(404, "not found")
	})

	require.Error(t, err)
	se, ok := apierrors.AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.KindHTTP, se.Kind)
	assert.Equal(t, 404, se.Status)
	assert.Equal(t, 1, calls, "client errors must short-circuit the attempt budget")
	assert.Empty(t, *delays)
}

func TestDoRetriesServerErrors(t *testing.T) {
	e, _ := newTestExecutor(t)

	calls := 0
	_, err := Do(context.Background(), e, noJitterPolicy(2), "test", func(ctx context.Context) (string, error) {
		calls++
		return "", apierrors.NewHTTPError(503, "unavailable")
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoClassifiesRawFaults(t *testing.T) {
	e, _ := newTestExecutor(t)

	_, err := Do(context.Background(), e, noJitterPolicy(0), "test", func(ctx context.Context) (string, error) {
		return "", errors.New("spurious transport glitch")
	})

	require.Error(t, err)
	se, ok := apierrors.AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.KindNetwork, se.Kind)
}

func TestDoFailsFastWhenCircuitOpen(t *testing.T) {
	e, _ := newTestExecutor(t)

	// Trip the breaker with ten failed single-attempt calls.
	for i := 0; i < 10; i++ {
		_, err := Do(context.Background(), e, noJitterPolicy(0), "test", func(ctx context.Context) (string, error) {
			return "", apierrors.NewNetworkError("down", nil)
		})
		require.Error(t, err)
	}
	require.Equal(t, breaker.StateOpen, e.Breaker().State())

	calls := 0
	_, err := Do(context.Background(), e, noJitterPolicy(3), "test", func(ctx context.Context) (string, error) {
		calls++
		return "", nil
	})

	require.Error(t, err)
	assert.True(t, apierrors.IsCircuitOpen(err))
	assert.Equal(t, 0, calls, "the operation must not run against an open circuit")
}

func TestDoRespectsCustomRetryCondition(t *testing.T) {
	e, _ := newTestExecutor(t)

	policy := noJitterPolicy(3)
	policy.RetryIf = func(err *apierrors.ServiceError) bool { return false }

	calls := 0
	_, err := Do(context.Background(), e, policy, "test", func(ctx context.Context) (string, error) {
		calls++
		return "", apierrors.NewNetworkError("down", nil)
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoStopsWhenCallerAbandonsDuringBackoff(t *testing.T) {
	b := breaker.New(breaker.Config{Name: "test-backend"})
	e := NewExecutor(b, WithSleep(func(ctx context.Context, d time.Duration) error {
		return context.Canceled
	}))

	calls := 0
	_, err := Do(context.Background(), e, noJitterPolicy(3), "test", func(ctx context.Context) (string, error) {
		calls++
		return "", apierrors.NewNetworkError("down", nil)
	})

	require.Error(t, err)
	se, ok := apierrors.AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.KindNetwork, se.Kind, "the last classified failure surfaces, not a bare context error")
	assert.Equal(t, 1, calls)
}

func TestDoRecordsSuccessWithBreaker(t *testing.T) {
	e, _ := newTestExecutor(t)

	// Alternating failures and successes must not trip the breaker; each
	// success grants recovery credit.
	for i := 0; i < 30; i++ {
		_, _ = Do(context.Background(), e, noJitterPolicy(0), "test", func(ctx context.Context) (string, error) {
			if i%2 == 0 {
				return "", apierrors.NewNetworkError("flaky", nil)
			}
			return "ok", nil
		})
	}

	assert.Equal(t, breaker.StateClosed, e.Breaker().State())
}
