package config

import (
	"fmt"
	"strings"

	"github.com/harun/dragen/pkg/sandbox"
)

var knownProviders = []string{"openai", "anthropic", "gemini", "groq"}

func isKnownProvider(provider string) bool {
	provider = strings.ToLower(provider)
	for _, known := range knownProviders {
		if provider == known {
			return true
		}
	}
	return false
}

func knownProvidersList() string {
	return strings.Join(knownProviders, ", ")
}

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateProvider validates a provider name
func (v *Validator) ValidateProvider(provider string) error {
	if provider == "" {
		return fmt.Errorf("provider cannot be empty")
	}
	if !isKnownProvider(provider) {
		return fmt.Errorf("invalid provider: %s (must be one of: %s)", provider, knownProvidersList())
	}
	return nil
}

// ValidateAPIKey validates an API key format. Keys for a custom base URL are
// only checked for presence.
func (v *Validator) ValidateAPIKey(key, provider, baseURL string) error {
	if key == "" {
		return fmt.Errorf("%s API key cannot be empty", provider)
	}
	if baseURL != "" {
		return nil
	}

	switch strings.ToLower(provider) {
	case "anthropic":
		if !strings.HasPrefix(key, "sk-ant-") {
			return fmt.Errorf("invalid Anthropic API key format (should start with sk-ant-)")
		}
	case "openai":
		if !strings.HasPrefix(key, "sk-") {
			return fmt.Errorf("invalid OpenAI API key format (should start with sk-)")
		}
	case "groq":
		if !strings.HasPrefix(key, "gsk_") {
			return fmt.Errorf("invalid Groq API key format (should start with gsk_)")
		}
	}

	return nil
}

// ValidateModel validates a model name
func (v *Validator) ValidateModel(model string) error {
	if strings.TrimSpace(model) == "" {
		return fmt.Errorf("model name cannot be empty")
	}
	return nil
}

// ValidateMaxIterations validates the iteration budget
func (v *Validator) ValidateMaxIterations(n int) error {
	if n < 1 {
		return fmt.Errorf("max iterations must be at least 1, got %d", n)
	}
	if n > 100 {
		return fmt.Errorf("max iterations too large (max 100), got %d", n)
	}
	return nil
}

// ValidateTemperature validates temperature value
func (v *Validator) ValidateTemperature(temp float64) error {
	if temp < 0 || temp > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %f", temp)
	}
	return nil
}

// ValidateMaxTokens validates max tokens value
func (v *Validator) ValidateMaxTokens(tokens int) error {
	if tokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", tokens)
	}
	if tokens > 200000 {
		return fmt.Errorf("max tokens too large (max 200000), got %d", tokens)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateRuntime validates the sandbox runtime
func (v *Validator) ValidateRuntime(runtime sandbox.Runtime) error {
	switch runtime {
	case sandbox.RuntimeHost:
		return nil
	case sandbox.RuntimeDocker:
		return sandbox.CheckDocker()
	default:
		return fmt.Errorf("invalid sandbox runtime: %s (must be host or docker)", runtime)
	}
}

// ValidateConfig performs comprehensive validation and reports every problem
// found. The docker runtime is checked against the local docker binary.
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	if err := v.ValidateProvider(cfg.Provider.Provider); err != nil {
		errors = append(errors, err)
	} else if err := v.ValidateAPIKey(cfg.Provider.APIKey, cfg.Provider.Provider, cfg.Provider.BaseURL); err != nil {
		errors = append(errors, err)
	}

	if err := v.ValidateModel(cfg.Agent.Model); err != nil {
		errors = append(errors, fmt.Errorf("agent: %w", err))
	}
	if err := v.ValidateMaxIterations(cfg.Agent.MaxIterations); err != nil {
		errors = append(errors, fmt.Errorf("agent: %w", err))
	}
	if cfg.Agent.Temperature != nil {
		if err := v.ValidateTemperature(*cfg.Agent.Temperature); err != nil {
			errors = append(errors, fmt.Errorf("agent: %w", err))
		}
	}
	if cfg.Agent.MaxTokens != nil {
		if err := v.ValidateMaxTokens(*cfg.Agent.MaxTokens); err != nil {
			errors = append(errors, fmt.Errorf("agent: %w", err))
		}
	}

	if err := v.ValidateRuntime(cfg.Sandbox.Runtime); err != nil {
		errors = append(errors, fmt.Errorf("sandbox: %w", err))
	}
	if cfg.Sandbox.ResourceLimits.Timeout < 0 {
		errors = append(errors, fmt.Errorf("sandbox: timeout must be >= 0"))
	}

	if cfg.Map.Concurrency < 0 {
		errors = append(errors, fmt.Errorf("map.concurrency must be >= 0"))
	}

	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}

	return errors
}
