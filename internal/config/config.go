package config

import (
	"encoding/json"
	"fmt"

	"github.com/harun/dragen/internal/logger"
	"github.com/harun/dragen/pkg/agent"
	"github.com/harun/dragen/pkg/sandbox"
)

// Config represents the main dragen configuration
type Config struct {
	// Agent holds the run loop settings
	Agent agent.Config `json:"agent" mapstructure:"agent"`

	// Provider selects the LLM backend and its credentials
	Provider agent.AuthProfile `json:"provider" mapstructure:"provider"`

	// Sandbox configures the Python interpreter
	Sandbox sandbox.Config `json:"sandbox" mapstructure:"sandbox"`

	// Map configures parallel runs
	Map MapConfig `json:"map" mapstructure:"map"`

	// Logging
	Logging logger.Config `json:"logging" mapstructure:"logging"`

	// Verbose logs every agent event
	Verbose bool `json:"verbose" mapstructure:"verbose"`

	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`
	Tracing TracingConfig `json:"tracing" mapstructure:"tracing"`
	Audit   AuditConfig   `json:"audit" mapstructure:"audit"`
}

// MapConfig holds fan-out settings
type MapConfig struct {
	// Concurrency caps simultaneous forks; 0 means one per task
	Concurrency int `json:"concurrency" mapstructure:"concurrency"`
}

// MetricsConfig holds the Prometheus endpoint settings
type MetricsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Addr    string `json:"addr" mapstructure:"addr"`
}

// TracingConfig holds OpenTelemetry settings
type TracingConfig struct {
	Enabled     bool    `json:"enabled" mapstructure:"enabled"`
	ServiceName string  `json:"service_name" mapstructure:"service_name"`
	SampleRatio float64 `json:"sample_ratio" mapstructure:"sample_ratio"`
}

// AuditConfig holds the audit log settings
type AuditConfig struct {
	// Path is the audit log file; empty disables auditing
	Path string `json:"path" mapstructure:"path"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	logging := logger.DefaultConfig()
	logging.Pretty = false

	return &Config{
		Agent: agent.DefaultConfig(),
		Provider: agent.AuthProfile{
			Provider: "groq",
		},
		Sandbox: sandbox.DefaultConfig(),
		Logging: logging,
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
		Tracing: TracingConfig{
			ServiceName: "dragen",
			SampleRatio: 1,
		},
	}
}

// String returns a JSON representation of the config with the API key masked
func (c *Config) String() string {
	masked := *c
	if masked.Provider.APIKey != "" {
		masked.Provider.APIKey = "***"
	}
	data, _ := json.MarshalIndent(masked, "", "  ")
	return string(data)
}

// Validate checks the settings that would prevent an agent from starting
func (c *Config) Validate() error {
	if c.Provider.Provider == "" {
		return fmt.Errorf("provider is required")
	}
	if !isKnownProvider(c.Provider.Provider) {
		return fmt.Errorf("invalid provider %s (must be one of: %s)", c.Provider.Provider, knownProvidersList())
	}
	if c.Provider.APIKey == "" {
		return fmt.Errorf("provider %s: api_key is required", c.Provider.Provider)
	}

	if err := c.Agent.Validate(); err != nil {
		return fmt.Errorf("agent: %w", err)
	}

	if err := sandbox.ValidateConfig(c.Sandbox); err != nil {
		return fmt.Errorf("sandbox: %w", err)
	}

	if c.Map.Concurrency < 0 {
		return fmt.Errorf("map concurrency must be >= 0")
	}

	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing sample ratio must be between 0 and 1")
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics address is required when metrics are enabled")
	}

	return nil
}
