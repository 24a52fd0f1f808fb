package ratelimit

import (
	"strings"

	"go.uber.org/ratelimit"

	"github.com/steadyp/steady-client/internal/config"
)

// Limiter paces outbound requests per destination host. Hosts without a
// matching rule are not throttled.
type Limiter struct {
	limiters       map[string]ratelimit.Limiter
	defaultLimiter ratelimit.Limiter
}

func New(rules []config.RateLimitRule) *Limiter {
	limiters := make(map[string]ratelimit.Limiter)

	for _, rule := range rules {
		rate := rule.RequestsPerSecond
		if rate <= 0 {
			rate = 1
		}
		limiters[rule.Domain] = ratelimit.New(rate)
	}

	return &Limiter{
		limiters:       limiters,
		defaultLimiter: ratelimit.NewUnlimited(),
	}
}

// Wait blocks until the host's rate limit admits another request.
func (l *Limiter) Wait(host string) {
	limiter := l.findLimiter(host)
	if limiter == nil {
		limiter = l.defaultLimiter
	}
	limiter.Take()
}

func (l *Limiter) findLimiter(host string) ratelimit.Limiter {
	// Exact match first
	if limiter, exists := l.limiters[host]; exists {
		return limiter
	}

	// Wildcard matching
	for pattern, limiter := range l.limiters {
		if strings.HasPrefix(pattern, "*.") {
			suffix := strings.TrimPrefix(pattern, "*.")
			if strings.HasSuffix(host, suffix) {
				return limiter
			}
		}
	}

	return nil
}
