package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/harun/dragen/pkg/sandbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNewLoader(t *testing.T) {
	loader := NewLoader("/path/to/dragen.yaml")

	assert.Equal(t, "/path/to/dragen.yaml", loader.GetConfigPath())
	assert.Equal(t, ".env", loader.envFile)
}

func TestLoaderLoad(t *testing.T) {
	t.Run("should return defaults when the file does not exist", func(t *testing.T) {
		t.Setenv("GROQ_API_KEY", "")
		loader := NewLoader(filepath.Join(t.TempDir(), "missing.yaml")).WithEnvFile("")

		cfg, err := loader.Load()

		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("should load a YAML file", func(t *testing.T) {
		path := writeFile(t, "dragen.yaml", `
agent:
  model: claude-sonnet-4
  max_iterations: 4
  temperature: 0.2
provider:
  provider: anthropic
  api_key: sk-ant-test
sandbox:
  runtime: host
  resource_limits:
    timeout: 5s
map:
  concurrency: 3
`)

		cfg, err := NewLoader(path).WithEnvFile("").Load()

		require.NoError(t, err)
		assert.Equal(t, "claude-sonnet-4", cfg.Agent.Model)
		assert.Equal(t, 4, cfg.Agent.MaxIterations)
		require.NotNil(t, cfg.Agent.Temperature)
		assert.InDelta(t, 0.2, *cfg.Agent.Temperature, 1e-9)
		require.NotNil(t, cfg.Agent.MaxTokens)
		assert.Equal(t, 4096, *cfg.Agent.MaxTokens)
		assert.Equal(t, "anthropic", cfg.Provider.Provider)
		assert.Equal(t, "sk-ant-test", cfg.Provider.APIKey)
		assert.Equal(t, 5*time.Second, cfg.Sandbox.ResourceLimits.Timeout)
		assert.Equal(t, "python3", cfg.Sandbox.PythonPath)
		assert.Equal(t, 3, cfg.Map.Concurrency)
	})

	t.Run("should load a JSON file", func(t *testing.T) {
		path := writeFile(t, "dragen.json", `{
			"agent": {"model": "gpt-4o"},
			"provider": {"provider": "openai", "api_key": "sk-test", "base_url": "http://localhost:8000/v1"}
		}`)

		cfg, err := NewLoader(path).WithEnvFile("").Load()

		require.NoError(t, err)
		assert.Equal(t, "gpt-4o", cfg.Agent.Model)
		assert.Equal(t, "http://localhost:8000/v1", cfg.Provider.BaseURL)
		assert.Equal(t, 10, cfg.Agent.MaxIterations)
	})

	t.Run("should let the environment override the file", func(t *testing.T) {
		path := writeFile(t, "dragen.yaml", "agent:\n  model: from-file\n  max_iterations: 4\n")
		t.Setenv("DRAGEN_AGENT_MODEL", "from-env")
		t.Setenv("DRAGEN_AGENT_MAX_ITERATIONS", "7")
		t.Setenv("DRAGEN_PROVIDER_API_KEY", "gsk_env")

		cfg, err := NewLoader(path).WithEnvFile("").Load()

		require.NoError(t, err)
		assert.Equal(t, "from-env", cfg.Agent.Model)
		assert.Equal(t, 7, cfg.Agent.MaxIterations)
		assert.Equal(t, "gsk_env", cfg.Provider.APIKey)
	})

	t.Run("should fall back to the provider's conventional key variable", func(t *testing.T) {
		path := writeFile(t, "dragen.yaml", "provider:\n  provider: gemini\n")
		t.Setenv("GEMINI_API_KEY", "AIza-test")

		cfg, err := NewLoader(path).WithEnvFile("").Load()

		require.NoError(t, err)
		assert.Equal(t, "AIza-test", cfg.Provider.APIKey)
	})

	t.Run("should read the env file", func(t *testing.T) {
		envFile := writeFile(t, ".env", "DRAGEN_PROVIDER_BASE_URL=http://dotenv.local/v1\n")
		t.Cleanup(func() { os.Unsetenv("DRAGEN_PROVIDER_BASE_URL") })

		cfg, err := NewLoader(filepath.Join(t.TempDir(), "missing.yaml")).WithEnvFile(envFile).Load()

		require.NoError(t, err)
		assert.Equal(t, "http://dotenv.local/v1", cfg.Provider.BaseURL)
	})

	t.Run("should ignore a missing env file", func(t *testing.T) {
		_, err := NewLoader(filepath.Join(t.TempDir(), "missing.yaml")).
			WithEnvFile(filepath.Join(t.TempDir(), "none.env")).
			Load()

		assert.NoError(t, err)
	})

	t.Run("should fail on an unreadable file", func(t *testing.T) {
		path := writeFile(t, "dragen.json", "invalid json")

		_, err := NewLoader(path).WithEnvFile("").Load()

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read config file")
	})
}

func TestLoaderSave(t *testing.T) {
	t.Run("should round trip through YAML", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "dragen.yaml")
		cfg := DefaultConfig()
		cfg.Agent = cfg.Agent.WithModel("gpt-4o").WithMaxIterations(3)
		cfg.Provider.Provider = "openai"
		cfg.Provider.APIKey = "sk-saved"
		cfg.Sandbox.ResourceLimits.Timeout = 45 * time.Second
		cfg.Sandbox.Runtime = sandbox.RuntimeDocker
		cfg.Logging.MaxSize = 5

		loader := NewLoader(path).WithEnvFile("")
		require.NoError(t, loader.Save(cfg))

		loaded, err := loader.Load()

		require.NoError(t, err)
		assert.Equal(t, "gpt-4o", loaded.Agent.Model)
		assert.Equal(t, 3, loaded.Agent.MaxIterations)
		assert.Equal(t, "openai", loaded.Provider.Provider)
		assert.Equal(t, "sk-saved", loaded.Provider.APIKey)
		assert.Equal(t, 45*time.Second, loaded.Sandbox.ResourceLimits.Timeout)
		assert.Equal(t, sandbox.RuntimeDocker, loaded.Sandbox.Runtime)
		assert.Equal(t, 5, loaded.Logging.MaxSize)
	})
}
