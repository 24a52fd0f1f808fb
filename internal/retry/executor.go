package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/steadyp/steady-client/internal/apierrors"
	"github.com/steadyp/steady-client/internal/breaker"
	"github.com/steadyp/steady-client/internal/monitoring"
)

// Executor runs operations through a circuit breaker with bounded retries.
// It owns no goroutines; suspension happens only on the caller's goroutine
// during inter-attempt backoff, so concurrent Do calls never block each
// other.
type Executor struct {
	breaker *breaker.Breaker
	calc    *Calculator
	logger  *slog.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

// Option configures an Executor.
type Option func(*Executor)

// WithCalculator overrides the backoff calculator, used by tests to pin
// jitter.
func WithCalculator(c *Calculator) Option {
	return func(e *Executor) { e.calc = c }
}

// WithLogger sets the logger for attempt and failure events.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// WithSleep overrides the inter-attempt suspension, used by tests to avoid
// real waiting.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Executor) { e.sleep = fn }
}

// NewExecutor creates an executor guarding calls with the given breaker.
func NewExecutor(b *breaker.Breaker, opts ...Option) *Executor {
	e := &Executor{
		breaker: b,
		calc:    NewCalculator(nil),
		logger:  slog.Default(),
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Breaker returns the breaker guarding this executor.
func (e *Executor) Breaker() *breaker.Breaker {
	return e.breaker
}

// Do runs op under the executor's breaker and the given policy. The breaker
// is consulted once before the first attempt; an open circuit fails
// immediately and is never retried. Each failed attempt is classified, and
// only transient classifications consume backoff and further attempts. The
// terminal error is always a *apierrors.ServiceError.
func Do[T any](ctx context.Context, e *Executor, p Policy, category string, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if !e.breaker.CanExecute() {
		monitoring.BreakerRejections.WithLabelValues(e.breaker.Name()).Inc()
		monitoring.RequestsTotal.WithLabelValues(category, apierrors.KindCircuitOpen.String()).Inc()
		return zero, apierrors.NewCircuitOpenError(e.breaker.Name())
	}

	totalAttempts := p.MaxRetries + 1
	if totalAttempts < 1 {
		totalAttempts = 1
	}

	start := time.Now()
	for attempt := 1; attempt <= totalAttempts; attempt++ {
		monitoring.AttemptsTotal.WithLabelValues(category).Inc()

		result, err := op(ctx)
		if err == nil {
			e.breaker.RecordSuccess()
			monitoring.RequestsTotal.WithLabelValues(category, "success").Inc()
			monitoring.RequestLatency.WithLabelValues(category).Observe(time.Since(start).Seconds())
			return result, nil
		}

		svcErr := apierrors.Classify(err)

		if attempt == totalAttempts || !p.shouldRetry(svcErr) {
			e.breaker.RecordFailure()
			if attempt == totalAttempts && totalAttempts > 1 {
				e.logger.Error("attempt budget exhausted",
					"category", category,
					"attempts", attempt,
					"error", svcErr,
				)
			}
			monitoring.RequestsTotal.WithLabelValues(category, svcErr.Kind.String()).Inc()
			monitoring.RequestLatency.WithLabelValues(category).Observe(time.Since(start).Seconds())
			return zero, svcErr
		}

		delay := e.calc.Delay(attempt, p)
		e.logger.Warn("call failed, retrying",
			"category", category,
			"attempt", attempt,
			"delay", delay,
			"error", svcErr,
		)
		monitoring.RetriesTotal.WithLabelValues(category).Inc()

		if sleepErr := e.sleep(ctx, delay); sleepErr != nil {
			// Caller abandoned the request mid-backoff. The last attempt
			// genuinely failed against the dependency, so it still counts.
			e.breaker.RecordFailure()
			monitoring.RequestsTotal.WithLabelValues(category, svcErr.Kind.String()).Inc()
			return zero, svcErr
		}
	}

	// Unreachable: the loop always returns on its final attempt.
	return zero, apierrors.NewNetworkError("retry loop exited without result", nil)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
