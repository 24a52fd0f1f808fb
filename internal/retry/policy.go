package retry

import (
	"fmt"
	"time"

	"github.com/steadyp/steady-client/internal/apierrors"
)

// Policy is an immutable retry policy for one call-site category. Validate
// at construction; a zero MaxRetries means a single attempt with no retries.
type Policy struct {
	MaxRetries      int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	ExponentialBase float64
	Jitter          bool

	// RetryIf decides whether a classified error may be retried. Nil means
	// the default transience rules (timeouts, network faults, 5xx).
	RetryIf func(err *apierrors.ServiceError) bool
}

// DefaultPolicy is a reasonable policy for interactive API calls.
var DefaultPolicy = Policy{
	MaxRetries:      3,
	BaseDelay:       300 * time.Millisecond,
	MaxDelay:        10 * time.Second,
	ExponentialBase: 2.0,
	Jitter:          true,
}

// Validate checks the policy bounds.
func (p Policy) Validate() error {
	if p.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative, got %d", p.MaxRetries)
	}
	if p.BaseDelay <= 0 {
		return fmt.Errorf("base_delay must be positive, got %v", p.BaseDelay)
	}
	if p.MaxDelay < p.BaseDelay {
		return fmt.Errorf("max_delay %v must not be below base_delay %v", p.MaxDelay, p.BaseDelay)
	}
	if p.ExponentialBase < 1 {
		return fmt.Errorf("exponential_base must be >= 1, got %v", p.ExponentialBase)
	}
	return nil
}

func (p Policy) shouldRetry(err *apierrors.ServiceError) bool {
	if p.RetryIf != nil {
		return p.RetryIf(err)
	}
	return apierrors.Retryable(err)
}

// WithMaxRetries returns a copy of the policy with the retry budget replaced.
func (p Policy) WithMaxRetries(n int) Policy {
	p.MaxRetries = n
	return p
}
