package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAPIKey(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name     string
		key      string
		provider string
		baseURL  string
		wantErr  bool
	}{
		{"should accept an anthropic key", "sk-ant-test123", "anthropic", "", false},
		{"should reject a malformed anthropic key", "invalid-key", "anthropic", "", true},
		{"should accept an openai key", "sk-test123", "openai", "", false},
		{"should reject a malformed openai key", "invalid-key", "openai", "", true},
		{"should accept a groq key", "gsk_test", "groq", "", false},
		{"should reject a malformed groq key", "sk-test", "groq", "", true},
		{"should accept any gemini key", "AIza-anything", "gemini", "", false},
		{"should accept any key for a custom endpoint", "local", "openai", "http://localhost:8000/v1", false},
		{"should reject an empty key", "", "anthropic", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateAPIKey(tt.key, tt.provider, tt.baseURL)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateProvider(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateProvider("groq"))
	assert.NoError(t, v.ValidateProvider("OpenAI"))
	assert.Error(t, v.ValidateProvider(""))
	assert.Error(t, v.ValidateProvider("cohere"))
}

func TestValidateLimits(t *testing.T) {
	v := NewValidator()

	t.Run("should bound max iterations", func(t *testing.T) {
		assert.NoError(t, v.ValidateMaxIterations(1))
		assert.Error(t, v.ValidateMaxIterations(0))
		assert.Error(t, v.ValidateMaxIterations(101))
	})

	t.Run("should bound temperature", func(t *testing.T) {
		assert.NoError(t, v.ValidateTemperature(0))
		assert.NoError(t, v.ValidateTemperature(2))
		assert.Error(t, v.ValidateTemperature(-0.1))
		assert.Error(t, v.ValidateTemperature(2.5))
	})

	t.Run("should bound max tokens", func(t *testing.T) {
		assert.NoError(t, v.ValidateMaxTokens(4096))
		assert.Error(t, v.ValidateMaxTokens(0))
		assert.Error(t, v.ValidateMaxTokens(300000))
	})

	t.Run("should check log levels", func(t *testing.T) {
		assert.NoError(t, v.ValidateLogLevel("debug"))
		assert.Error(t, v.ValidateLogLevel("trace"))
	})

	t.Run("should check the sandbox runtime", func(t *testing.T) {
		assert.NoError(t, v.ValidateRuntime("host"))
		assert.Error(t, v.ValidateRuntime("vm"))
	})
}

func TestValidatorValidateConfig(t *testing.T) {
	v := NewValidator()

	t.Run("should accept a valid config", func(t *testing.T) {
		assert.Empty(t, v.ValidateConfig(validConfig()))
	})

	t.Run("should report every problem", func(t *testing.T) {
		cfg := validConfig()
		cfg.Provider.APIKey = "bad"
		cfg.Agent.MaxIterations = 0
		cfg.Agent = cfg.Agent.WithTemperature(3)
		cfg.Logging.Level = "loud"
		cfg.Map.Concurrency = -2

		errs := v.ValidateConfig(cfg)

		assert.Len(t, errs, 5)
	})
}
