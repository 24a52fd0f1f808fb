package loadtest

import (
	"context"
	"sync"
	"time"

	"github.com/steadyp/steady-client/internal/apierrors"
	"github.com/steadyp/steady-client/internal/client"
)

// Config holds configuration for a load run against one backend.
type Config struct {
	ConcurrentWorkers int           `json:"concurrent_workers"`
	Duration          time.Duration `json:"duration"`
	Path              string        `json:"path"`
	Category          string        `json:"category"`
}

// Result contains the aggregated outcome of a load run.
type Result struct {
	TotalRequests      int64            `json:"total_requests"`
	SuccessfulRequests int64            `json:"successful_requests"`
	FailedRequests     int64            `json:"failed_requests"`
	RejectedRequests   int64            `json:"rejected_requests"` // refused by an open breaker
	Duration           time.Duration    `json:"duration"`
	AverageLatency     time.Duration    `json:"average_latency"`
	MinLatency         time.Duration    `json:"min_latency"`
	MaxLatency         time.Duration    `json:"max_latency"`
	RequestsPerSecond  float64          `json:"requests_per_second"`
	ErrorBreakdown     map[string]int64 `json:"error_breakdown"`
	FinalBreakerState  string           `json:"final_breaker_state"`
}

// workerStats tracks one worker's counters
type workerStats struct {
	requests     int64
	successes    int64
	errors       int64
	rejected     int64
	totalLatency time.Duration
	minLatency   time.Duration
	maxLatency   time.Duration
	breakdown    map[string]int64
}

// Runner drives concurrent workers through a resilient client so breaker
// and retry behavior can be observed under load.
type Runner struct {
	config Config
	client *client.Client
	wg     sync.WaitGroup
}

// NewRunner creates a load run over an existing client.
func NewRunner(c *client.Client, config Config) *Runner {
	if config.ConcurrentWorkers <= 0 {
		config.ConcurrentWorkers = 1
	}
	if config.Duration <= 0 {
		config.Duration = 10 * time.Second
	}
	if config.Path == "" {
		config.Path = "/"
	}

	return &Runner{
		config: config,
		client: c,
	}
}

// Run executes the load run and aggregates results.
func (r *Runner) Run(ctx context.Context) Result {
	ctx, cancel := context.WithTimeout(ctx, r.config.Duration)
	defer cancel()

	start := time.Now()
	stats := make([]*workerStats, r.config.ConcurrentWorkers)
	for i := range stats {
		stats[i] = &workerStats{
			minLatency: time.Hour,
			breakdown:  make(map[string]int64),
		}
		r.wg.Add(1)
		go r.worker(ctx, stats[i])
	}
	r.wg.Wait()

	return r.aggregate(stats, time.Since(start))
}

func (r *Runner) worker(ctx context.Context, s *workerStats) {
	defer r.wg.Done()

	opts := &client.RequestOptions{Category: r.config.Category}
	for ctx.Err() == nil {
		began := time.Now()
		_, err := r.client.Get(ctx, r.config.Path, opts)
		latency := time.Since(began)

		s.requests++
		s.totalLatency += latency
		if latency < s.minLatency {
			s.minLatency = latency
		}
		if latency > s.maxLatency {
			s.maxLatency = latency
		}

		if err == nil {
			s.successes++
			continue
		}

		s.errors++
		if se, ok := apierrors.AsServiceError(err); ok {
			s.breakdown[se.Kind.String()]++
			if se.Kind == apierrors.KindCircuitOpen {
				s.rejected++
			}
		} else {
			s.breakdown["unclassified"]++
		}
	}
}

// aggregate combines statistics from all workers
func (r *Runner) aggregate(stats []*workerStats, elapsed time.Duration) Result {
	result := Result{
		Duration:          elapsed,
		ErrorBreakdown:    make(map[string]int64),
		FinalBreakerState: r.client.Breaker().State().String(),
	}

	var totalLatency time.Duration
	for _, s := range stats {
		result.TotalRequests += s.requests
		result.SuccessfulRequests += s.successes
		result.FailedRequests += s.errors
		result.RejectedRequests += s.rejected
		totalLatency += s.totalLatency

		if s.requests > 0 && (result.MinLatency == 0 || s.minLatency < result.MinLatency) {
			result.MinLatency = s.minLatency
		}
		if s.maxLatency > result.MaxLatency {
			result.MaxLatency = s.maxLatency
		}
		for kind, count := range s.breakdown {
			result.ErrorBreakdown[kind] += count
		}
	}

	if result.TotalRequests > 0 {
		result.AverageLatency = totalLatency / time.Duration(result.TotalRequests)
	}
	if elapsed > 0 {
		result.RequestsPerSecond = float64(result.TotalRequests) / elapsed.Seconds()
	}

	return result
}
