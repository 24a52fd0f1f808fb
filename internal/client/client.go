package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/steadyp/steady-client/internal/apierrors"
	"github.com/steadyp/steady-client/internal/breaker"
	"github.com/steadyp/steady-client/internal/config"
	"github.com/steadyp/steady-client/internal/monitoring"
	"github.com/steadyp/steady-client/internal/ratelimit"
	"github.com/steadyp/steady-client/internal/retry"
)

// Client issues JSON calls to one backend through a circuit breaker, with
// per-category retry policies and per-host request pacing. A Client is safe
// for concurrent use; each call runs independently on its caller's
// goroutine.
type Client struct {
	backend    config.BackendConfig
	baseURL    *url.URL
	httpClient *http.Client
	policies   map[string]retry.Policy
	breaker    *breaker.Breaker
	executor   *retry.Executor
	limiter    *ratelimit.Limiter
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger for client, executor and breaker events.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New builds a client from configuration. The breaker is owned by the
// client: one instance guarding the configured backend for the life of the
// process.
func New(cfg *config.Config, opts ...Option) (*Client, error) {
	base, err := url.Parse(cfg.Backend.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", cfg.Backend.BaseURL, err)
	}

	c := &Client{
		backend: cfg.Backend,
		baseURL: base,
		httpClient: &http.Client{
			// Per-call deadlines come from request contexts; this is the
			// hard upper bound.
			Timeout: 2 * cfg.Backend.Timeout.Std(),
		},
		limiter: ratelimit.New(cfg.RateLimits),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.policies = make(map[string]retry.Policy, len(cfg.Policies))
	for name, pc := range cfg.Policies {
		policy := retry.Policy{
			MaxRetries:      pc.MaxRetries,
			BaseDelay:       pc.BaseDelay.Std(),
			MaxDelay:        pc.MaxDelay.Std(),
			ExponentialBase: pc.ExponentialBase,
			Jitter:          pc.Jitter,
		}
		if err := policy.Validate(); err != nil {
			return nil, fmt.Errorf("policy %q: %w", name, err)
		}
		c.policies[name] = policy
	}

	c.breaker = breaker.New(breaker.Config{
		Name:              cfg.Backend.Name,
		FailureThreshold:  cfg.Breaker.FailureThreshold,
		MinimumRequests:   cfg.Breaker.MinimumRequests,
		OpenTimeout:       cfg.Breaker.OpenTimeout.Std(),
		HalfOpenMaxCalls:  cfg.Breaker.HalfOpenMaxCalls,
		RequiredSuccesses: cfg.Breaker.RequiredSuccesses,
		Logger:            c.logger,
		OnStateChange: func(name string, from, to breaker.State) {
			monitoring.BreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})
	c.executor = retry.NewExecutor(c.breaker, retry.WithLogger(c.logger))

	return c, nil
}

// Breaker exposes the breaker for health reporting.
func (c *Client) Breaker() *breaker.Breaker {
	return c.breaker
}

// RequestOptions are per-call overrides layered over the category defaults.
type RequestOptions struct {
	Category      string        // policy name; empty means "default"
	Timeout       time.Duration // per-call deadline override
	MaxRetries    *int          // retry budget override
	CorrelationID string        // supplied trace id; generated when empty
	Header        http.Header   // extra headers
}

// Get issues a GET and returns the raw response body.
func (c *Client) Get(ctx context.Context, path string, opts *RequestOptions) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, nil, opts)
}

// Post marshals body as JSON, issues a POST and returns the raw response
// body.
func (c *Client) Post(ctx context.Context, path string, body any, opts *RequestOptions) ([]byte, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, apierrors.NewValidationError(fmt.Sprintf("failed to encode request body: %v", err))
		}
	}
	return c.do(ctx, http.MethodPost, path, payload, opts)
}

// DoJSON issues a call and decodes the response body into T. Decode
// failures classify as validation errors.
func DoJSON[T any](ctx context.Context, c *Client, method, path string, body any, opts *RequestOptions) (T, error) {
	var result T

	var raw []byte
	var err error
	switch method {
	case http.MethodGet:
		raw, err = c.Get(ctx, path, opts)
	case http.MethodPost:
		raw, err = c.Post(ctx, path, body, opts)
	default:
		return result, apierrors.NewValidationError(fmt.Sprintf("unsupported method %q", method))
	}
	if err != nil {
		return result, err
	}

	if err := json.Unmarshal(raw, &result); err != nil {
		return result, apierrors.NewValidationError(fmt.Sprintf("failed to decode response: %v", err))
	}
	return result, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte, opts *RequestOptions) ([]byte, error) {
	if opts == nil {
		opts = &RequestOptions{}
	}

	policy := c.policyFor(opts)

	correlationID := opts.CorrelationID
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	category := opts.Category
	if category == "" {
		category = "default"
	}

	return retry.Do(ctx, c.executor, policy, category, func(ctx context.Context) ([]byte, error) {
		c.limiter.Wait(c.baseURL.Host)
		return c.roundTrip(ctx, method, path, payload, correlationID, opts)
	})
}

func (c *Client) policyFor(opts *RequestOptions) retry.Policy {
	name := opts.Category
	if name == "" {
		name = "default"
	}
	policy, ok := c.policies[name]
	if !ok {
		policy = c.policies["default"]
	}
	if opts.MaxRetries != nil {
		policy = policy.WithMaxRetries(*opts.MaxRetries)
	}
	return policy
}
