package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "300ms" parse.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type BackendConfig struct {
	Name          string   `yaml:"name"`
	BaseURL       string   `yaml:"base_url"`
	AuthToken     string   `yaml:"auth_token,omitempty"`
	ClientVersion string   `yaml:"client_version,omitempty"`
	Timeout       Duration `yaml:"timeout,omitempty"`
}

type BreakerConfig struct {
	FailureThreshold  int      `yaml:"failure_threshold"`
	MinimumRequests   int      `yaml:"minimum_requests"`
	OpenTimeout       Duration `yaml:"open_timeout"`
	HalfOpenMaxCalls  int      `yaml:"half_open_max_calls"`
	RequiredSuccesses int      `yaml:"required_successes"`
}

type PolicyConfig struct {
	MaxRetries      int      `yaml:"max_retries"`
	BaseDelay       Duration `yaml:"base_delay"`
	MaxDelay        Duration `yaml:"max_delay"`
	ExponentialBase float64  `yaml:"exponential_base"`
	Jitter          bool     `yaml:"jitter"`
}

type RateLimitRule struct {
	Domain            string `yaml:"domain"`
	RequestsPerSecond int    `yaml:"requests_per_second"`
}

type MonitoringConfig struct {
	MetricsEnabled bool   `yaml:"metrics_enabled"`
	ListenAddress  string `yaml:"listen_address"`
	LogLevel       string `yaml:"log_level"`
}

type Config struct {
	Backend    BackendConfig           `yaml:"backend"`
	Breaker    BreakerConfig           `yaml:"breaker"`
	Policies   map[string]PolicyConfig `yaml:"policies"`
	RateLimits []RateLimitRule         `yaml:"rate_limits"`
	Monitoring MonitoringConfig        `yaml:"monitoring,omitempty"`
}
