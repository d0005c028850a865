package transit

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the file-based configuration entry point, typically loaded once
// at process bootstrap. Zero fields fall back to client defaults.
type Config struct {
	BaseURL          string   `yaml:"base_url"`
	RequestSource    string   `yaml:"request_source"`
	TimeoutMs        int      `yaml:"timeout_ms"`
	MaxRetries       int      `yaml:"max_retries"`
	InitialBackoffMs int      `yaml:"initial_backoff_ms"`
	LoginPath        string   `yaml:"login_path"`
	RetryExemptPaths []string `yaml:"retry_exempt_paths"`
}

// LoadConfig reads and parses a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("transit: read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("transit: parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the client could not run with.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("transit: config: base_url is required")
	}
	if c.TimeoutMs < 0 {
		return fmt.Errorf("transit: config: timeout_ms must not be negative")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("transit: config: max_retries must not be negative")
	}
	if c.InitialBackoffMs < 0 {
		return fmt.Errorf("transit: config: initial_backoff_ms must not be negative")
	}
	return nil
}

// Options bridges the file configuration to client construction:
//
//	cfg, _ := transit.LoadConfig("transit.yaml")
//	client := transit.New(cfg.Options()...)
func (c *Config) Options() []Option {
	opts := []Option{WithBaseURL(c.BaseURL)}

	if c.RequestSource != "" {
		opts = append(opts, WithRequestSource(c.RequestSource))
	}
	if c.TimeoutMs > 0 {
		opts = append(opts, WithTimeout(time.Duration(c.TimeoutMs)*time.Millisecond))
	}
	if c.MaxRetries > 0 {
		opts = append(opts, WithMaxRetries(c.MaxRetries))
	}
	if c.InitialBackoffMs > 0 {
		opts = append(opts, WithInitialBackoff(time.Duration(c.InitialBackoffMs)*time.Millisecond))
	}
	if c.LoginPath != "" {
		opts = append(opts, WithLoginPath(c.LoginPath))
	}
	if len(c.RetryExemptPaths) > 0 {
		opts = append(opts, WithRetryExemptPaths(c.RetryExemptPaths...))
	}
	return opts
}
