package breaker

import (
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// Breaker guards a single downstream dependency. It trips on either a
// failure rate above 50% over a minimum sample, or a consecutive-failure
// threshold, and probes recovery through a bounded half-open window.
type Breaker struct {
	name              string
	failureThreshold  int
	minimumRequests   int
	openTimeout       time.Duration
	halfOpenMaxCalls  int
	requiredSuccesses int
	clock             clock.Clock
	logger            *slog.Logger
	onStateChange     func(name string, from, to State)

	mu                sync.Mutex
	state             State
	failures          int
	successes         int
	halfOpenCalls     int
	halfOpenSuccesses int
	lastFailureTime   time.Time
}

// Config holds the circuit breaker configuration
type Config struct {
	Name              string
	FailureThreshold  int           // Consecutive failures before opening circuit
	MinimumRequests   int           // Sample size floor before the failure rate applies
	OpenTimeout       time.Duration // How long to wait before probing recovery
	HalfOpenMaxCalls  int           // Number of calls admitted in half-open state
	RequiredSuccesses int           // Consecutive successes needed to close from half-open
	Clock             clock.Clock
	Logger            *slog.Logger
	OnStateChange     func(name string, from, to State)
}

// New creates a circuit breaker in the closed state.
func New(config Config) *Breaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.MinimumRequests <= 0 {
		config.MinimumRequests = 10
	}
	if config.OpenTimeout <= 0 {
		config.OpenTimeout = 60 * time.Second
	}
	if config.HalfOpenMaxCalls <= 0 {
		config.HalfOpenMaxCalls = 3
	}
	if config.RequiredSuccesses <= 0 {
		config.RequiredSuccesses = 3
	}
	if config.Clock == nil {
		config.Clock = clock.New()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Breaker{
		name:              config.Name,
		failureThreshold:  config.FailureThreshold,
		minimumRequests:   config.MinimumRequests,
		openTimeout:       config.OpenTimeout,
		halfOpenMaxCalls:  config.HalfOpenMaxCalls,
		requiredSuccesses: config.RequiredSuccesses,
		clock:             config.Clock,
		logger:            config.Logger,
		onStateChange:     config.OnStateChange,
		state:             StateClosed,
	}
}

// CanExecute reports whether a new call may be attempted. The open to
// half-open transition happens here, as a side effect of the check: once the
// open timeout has elapsed the next caller flips the state and is admitted as
// the first probe. There is no background timer.
func (b *Breaker) CanExecute() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.clock.Now().Sub(b.lastFailureTime) > b.openTimeout {
			b.setState(StateHalfOpen)
			b.failures = 0
			b.successes = 0
			b.halfOpenSuccesses = 0
			b.halfOpenCalls = 1
			return true
		}
		return false
	case StateHalfOpen:
		if b.halfOpenCalls < b.halfOpenMaxCalls {
			b.halfOpenCalls++
			return true
		}
		return false
	default:
		return false
	}
}

// RecordSuccess records a successful call against the dependency.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.successes++
		if b.failures > 0 {
			b.failures--
		}
	case StateHalfOpen:
		b.halfOpenSuccesses++
		if b.halfOpenSuccesses >= b.requiredSuccesses {
			b.setState(StateClosed)
			b.failures = 0
			b.successes = 0
			b.halfOpenCalls = 0
			b.halfOpenSuccesses = 0
		}
	case StateOpen:
		// Late result from a probe that raced a reopen; the breaker has
		// already decided, so it carries no weight.
	}
}

// RecordFailure records a failed call against the dependency.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.failures++
		b.successes = 0
		b.lastFailureTime = b.clock.Now()
		if b.failures+b.successes >= b.minimumRequests {
			rate := float64(b.failures) / float64(b.failures+b.successes)
			if rate > 0.5 || b.failures >= b.failureThreshold {
				b.setState(StateOpen)
			}
		}
	case StateHalfOpen:
		// A single failed probe aborts recovery.
		b.setState(StateOpen)
		b.lastFailureTime = b.clock.Now()
		b.halfOpenCalls = 0
		b.halfOpenSuccesses = 0
	case StateOpen:
		b.lastFailureTime = b.clock.Now()
	}
}

// setState changes the state and notifies. Caller holds the lock.
func (b *Breaker) setState(newState State) {
	if b.state == newState {
		return
	}
	oldState := b.state
	b.state = newState

	b.logger.Info("circuit breaker state change",
		"breaker", b.name,
		"from", oldState.String(),
		"to", newState.String(),
	)
	if b.onStateChange != nil {
		go b.onStateChange(b.name, oldState, newState)
	}
}

// State returns the current state
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Name returns the circuit breaker name
func (b *Breaker) Name() string {
	return b.name
}

// Reset forces the circuit breaker into closed state
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = StateClosed
	b.failures = 0
	b.successes = 0
	b.halfOpenCalls = 0
	b.halfOpenSuccesses = 0
}

// Stats provides circuit breaker statistics
type Stats struct {
	Name            string
	State           State
	Failures        int
	Successes       int
	LastFailureTime time.Time
}

// Stats returns current circuit breaker statistics
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Stats{
		Name:            b.name,
		State:           b.state,
		Failures:        b.failures,
		Successes:       b.successes,
		LastFailureTime: b.lastFailureTime,
	}
}
