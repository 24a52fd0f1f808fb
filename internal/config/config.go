package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return LoadFromYAMLBytes(data)
}

func LoadFromYAMLString(yamlContent string) (*Config, error) {
	return LoadFromYAMLBytes([]byte(yamlContent))
}

func LoadFromYAMLBytes(data []byte) (*Config, error) {
	var config Config
	err := yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Expand environment variables before validation so ${VAR} holes in
	// required fields are caught.
	expandEnvironmentVariablesInConfig(&config)

	config.SetDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// SetDefaults fills unset fields with working values.
func (c *Config) SetDefaults() {
	if c.Backend.Name == "" {
		c.Backend.Name = "backend"
	}
	if c.Backend.Timeout <= 0 {
		c.Backend.Timeout = Duration(30 * time.Second)
	}
	if c.Backend.ClientVersion == "" {
		c.Backend.ClientVersion = "steady-client/dev"
	}

	if c.Breaker.FailureThreshold <= 0 {
		c.Breaker.FailureThreshold = 5
	}
	if c.Breaker.MinimumRequests <= 0 {
		c.Breaker.MinimumRequests = 10
	}
	if c.Breaker.OpenTimeout <= 0 {
		c.Breaker.OpenTimeout = Duration(60 * time.Second)
	}
	if c.Breaker.HalfOpenMaxCalls <= 0 {
		c.Breaker.HalfOpenMaxCalls = 3
	}
	if c.Breaker.RequiredSuccesses <= 0 {
		c.Breaker.RequiredSuccesses = 3
	}

	if c.Policies == nil {
		c.Policies = make(map[string]PolicyConfig)
	}
	if _, ok := c.Policies["default"]; !ok {
		c.Policies["default"] = PolicyConfig{
			MaxRetries:      3,
			BaseDelay:       Duration(300 * time.Millisecond),
			MaxDelay:        Duration(10 * time.Second),
			ExponentialBase: 2.0,
			Jitter:          true,
		}
	}

	if c.Monitoring.LogLevel == "" {
		c.Monitoring.LogLevel = "info"
	}
}

// Validate rejects configurations the client cannot run with.
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	for name, p := range c.Policies {
		if p.MaxRetries < 0 {
			return fmt.Errorf("policy %q: max_retries must be non-negative", name)
		}
		if p.BaseDelay <= 0 {
			return fmt.Errorf("policy %q: base_delay must be positive", name)
		}
		if p.MaxDelay < p.BaseDelay {
			return fmt.Errorf("policy %q: max_delay must not be below base_delay", name)
		}
		if p.ExponentialBase < 1 {
			return fmt.Errorf("policy %q: exponential_base must be >= 1", name)
		}
	}
	for _, rule := range c.RateLimits {
		if rule.Domain == "" {
			return fmt.Errorf("rate limit rule missing domain")
		}
	}
	return nil
}

var envVarRegex = regexp.MustCompile(`\$\{([^:}]+):?([^}]*)\}`)

func expandEnvironmentVariables(value string) string {
	return envVarRegex.ReplaceAllStringFunc(value, func(match string) string {
		matches := envVarRegex.FindStringSubmatch(match)
		if len(matches) < 2 {
			return match
		}

		envKey := matches[1]
		defaultValue := ""
		if len(matches) > 2 {
			defaultValue = matches[2]
		}

		if envValue := os.Getenv(envKey); envValue != "" {
			return envValue
		}
		return defaultValue
	})
}

func expandEnvironmentVariablesInConfig(config *Config) {
	config.Backend.BaseURL = expandEnvironmentVariables(config.Backend.BaseURL)
	config.Backend.AuthToken = expandEnvironmentVariables(config.Backend.AuthToken)
	config.Backend.ClientVersion = expandEnvironmentVariables(config.Backend.ClientVersion)
}
