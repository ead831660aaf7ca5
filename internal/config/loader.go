package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. DRAGEN_AGENT_MODEL
const EnvPrefix = "DRAGEN"

// envKeys are the settings that may come from the environment without
// appearing in the config file
var envKeys = []string{
	"agent.model",
	"agent.max_iterations",
	"provider.provider",
	"provider.api_key",
	"provider.base_url",
	"sandbox.runtime",
	"sandbox.python_path",
	"logging.level",
	"logging.file",
	"map.concurrency",
	"verbose",
}

// providerKeyEnv holds the conventional key variable of each provider
var providerKeyEnv = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"gemini":    "GEMINI_API_KEY",
	"groq":      "GROQ_API_KEY",
}

// Loader handles configuration loading
type Loader struct {
	configPath string
	envFile    string
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
		envFile:    ".env",
	}
}

// WithEnvFile sets the dotenv file read before the environment; empty disables it
func (l *Loader) WithEnvFile(path string) *Loader {
	l.envFile = path
	return l
}

// Load reads the config file, then applies environment overrides. A missing
// file yields the defaults plus the environment.
func (l *Loader) Load() (*Config, error) {
	if l.envFile != "" {
		// Variables already set in the environment win over the file
		if err := godotenv.Load(l.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	configPath := l.GetConfigPath()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Provider.APIKey == "" {
		if name, ok := providerKeyEnv[strings.ToLower(cfg.Provider.Provider)]; ok {
			cfg.Provider.APIKey = os.Getenv(name)
		}
	}

	return cfg, nil
}

// Save writes cfg to the loader's path. The format follows the file extension.
func (l *Loader) Save(cfg *Config) error {
	configPath := l.GetConfigPath()
	if configPath == "" {
		return fmt.Errorf("no config path")
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	settings, err := toSettings(cfg)
	if err != nil {
		return err
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	for key, value := range settings {
		v.Set(key, value)
	}

	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() string {
	if l.configPath != "" {
		return l.configPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".dragen", "dragen.yaml")
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	return NewLoader(configPath).Load()
}
