package retry

import (
	"math"
	"math/rand"
	"time"
)

// Calculator computes inter-attempt backoff delays. The random source is
// injectable so tests can pin exact delays.
type Calculator struct {
	rand func() float64 // uniform in [0,1)
}

// NewCalculator creates a calculator. A nil randFn uses math/rand.
func NewCalculator(randFn func() float64) *Calculator {
	if randFn == nil {
		randFn = rand.Float64
	}
	return &Calculator{rand: randFn}
}

// Delay returns the backoff before the attempt following `attempt`
// (1-indexed). Exponential growth clamped to the policy ceiling, with an
// optional uniform jitter of up to ±10%.
func (c *Calculator) Delay(attempt int, p Policy) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	raw := float64(p.BaseDelay) * math.Pow(p.ExponentialBase, float64(attempt-1))
	if raw > float64(p.MaxDelay) {
		raw = float64(p.MaxDelay)
	}

	if p.Jitter {
		// c.rand() in [0,1) maps to an offset in [-10%, +10%)
		raw += raw * 0.1 * (2*c.rand() - 1)
	}

	if raw < 0 {
		return 0
	}
	return time.Duration(raw)
}
