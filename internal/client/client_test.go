package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steadyp/steady-client/internal/apierrors"
	"github.com/steadyp/steady-client/internal/breaker"
	"github.com/steadyp/steady-client/internal/config"
)

func testConfig(baseURL string) *config.Config {
	cfg := &config.Config{
		Backend: config.BackendConfig{
			Name:      "test-backend",
			BaseURL:   baseURL,
			AuthToken: "secret-token",
			Timeout:   config.Duration(5 * time.Second),
		},
		Policies: map[string]config.PolicyConfig{
			"default": {
				MaxRetries:      2,
				BaseDelay:       config.Duration(time.Millisecond),
				MaxDelay:        config.Duration(10 * time.Millisecond),
				ExponentialBase: 2.0,
			},
			"no-retry": {
				MaxRetries:      0,
				BaseDelay:       config.Duration(time.Millisecond),
				MaxDelay:        config.Duration(10 * time.Millisecond),
				ExponentialBase: 2.0,
			},
		},
	}
	cfg.SetDefaults()
	return cfg
}

func TestClientAttachesStandardHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c, err := New(testConfig(srv.URL))
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "/v1/things", nil)
	require.NoError(t, err)

	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, "Bearer secret-token", got.Get("Authorization"))
	assert.NotEmpty(t, got.Get("X-Request-ID"))
	assert.NotEmpty(t, got.Get("X-Client-Version"))
}

func TestClientKeepsCorrelationIDAcrossRetries(t *testing.T) {
	var ids []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids = append(ids, r.Header.Get("X-Request-ID"))
		if len(ids) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c, err := New(testConfig(srv.URL))
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "/v1/things", nil)
	require.NoError(t, err)

	require.Len(t, ids, 3)
	assert.Equal(t, ids[0], ids[1])
	assert.Equal(t, ids[1], ids[2])
}

func TestClientUsesSuppliedCorrelationID(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Request-ID")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c, err := New(testConfig(srv.URL))
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "/", &RequestOptions{CorrelationID: "trace-123"})
	require.NoError(t, err)
	assert.Equal(t, "trace-123", got)
}

func TestClientRetriesServerErrorsThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"status":"recovered"}`))
	}))
	defer srv.Close()

	c, err := New(testConfig(srv.URL))
	require.NoError(t, err)

	body, err := c.Get(context.Background(), "/v1/status", nil)
	require.NoError(t, err)
	assert.Contains(t, string(body), "recovered")
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClientDoesNotRetryNotFound(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "no such thing", http.StatusNotFound)
	}))
	defer srv.Close()

	c, err := New(testConfig(srv.URL))
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "/v1/missing", nil)
	require.Error(t, err)

	se, ok := apierrors.AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.KindHTTP, se.Kind)
	assert.Equal(t, http.StatusNotFound, se.Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClientClassifiesTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c, err := New(testConfig(srv.URL))
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "/slow", &RequestOptions{
		Category: "no-retry",
		Timeout:  20 * time.Millisecond,
	})
	require.Error(t, err)

	se, ok := apierrors.AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.KindTimeout, se.Kind)
}

func TestClientClassifiesConnectionFailure(t *testing.T) {
	// Grab a port nothing listens on.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	deadURL := srv.URL
	srv.Close()

	c, err := New(testConfig(deadURL))
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "/", &RequestOptions{Category: "no-retry"})
	require.Error(t, err)

	se, ok := apierrors.AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.KindNetwork, se.Kind)
}

func TestClientPostSendsJSONBody(t *testing.T) {
	type createReq struct {
		Name string `json:"name"`
	}

	var received createReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"abc-1"}`))
	}))
	defer srv.Close()

	c, err := New(testConfig(srv.URL))
	require.NoError(t, err)

	body, err := c.Post(context.Background(), "/v1/things", createReq{Name: "widget"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "widget", received.Name)
	assert.Contains(t, string(body), "abc-1")
}

func TestClientMaxRetriesOverride(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := New(testConfig(srv.URL))
	require.NoError(t, err)

	zero := 0
	_, err = c.Get(context.Background(), "/", &RequestOptions{MaxRetries: &zero})
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClientTripsBreakerAndFailsFast(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Breaker = config.BreakerConfig{
		FailureThreshold:  5,
		MinimumRequests:   10,
		OpenTimeout:       config.Duration(60 * time.Second),
		HalfOpenMaxCalls:  3,
		RequiredSuccesses: 3,
	}

	c, err := New(cfg)
	require.NoError(t, err)

	opts := &RequestOptions{Category: "no-retry"}
	for i := 0; i < 10; i++ {
		_, err := c.Get(context.Background(), "/", opts)
		require.Error(t, err)
	}
	require.Equal(t, breaker.StateOpen, c.Breaker().State())

	before := atomic.LoadInt32(&calls)
	_, err = c.Get(context.Background(), "/", opts)
	require.Error(t, err)
	assert.True(t, apierrors.IsCircuitOpen(err))
	assert.Equal(t, before, atomic.LoadInt32(&calls), "no request may reach a tripped backend")
}

func TestDoJSONDecodesResponse(t *testing.T) {
	type thing struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"t-1","name":"widget"}`))
	}))
	defer srv.Close()

	c, err := New(testConfig(srv.URL))
	require.NoError(t, err)

	got, err := DoJSON[thing](context.Background(), c, http.MethodGet, "/v1/things/t-1", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, thing{ID: "t-1", Name: "widget"}, got)
}

func TestDoJSONDecodeFailureIsValidationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json at all`))
	}))
	defer srv.Close()

	c, err := New(testConfig(srv.URL))
	require.NoError(t, err)

	type thing struct{ ID string }
	_, err = DoJSON[thing](context.Background(), c, http.MethodGet, "/", nil, nil)
	require.Error(t, err)

	se, ok := apierrors.AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.KindValidation, se.Kind)
}

func TestNewRejectsInvalidBaseURL(t *testing.T) {
	cfg := testConfig("://not-a-url")
	_, err := New(cfg)
	assert.Error(t, err)
}
