package sandbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, RuntimeHost, cfg.Runtime)
	assert.Equal(t, "python3", cfg.PythonPath)
	assert.Equal(t, 50, cfg.ResourceLimits.MaxCPU)
	assert.Equal(t, 512, cfg.ResourceLimits.MaxMemoryMB)
	assert.Equal(t, 10, cfg.ResourceLimits.MaxProcesses)
	assert.Equal(t, 30*time.Second, cfg.ResourceLimits.Timeout)
	assert.False(t, cfg.NetworkAccess.Enabled)
	assert.NotEmpty(t, cfg.Docker.Image)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr error
	}{
		{name: "default config", mutate: func(cfg *Config) {}},
		{name: "docker runtime", mutate: func(cfg *Config) { cfg.Runtime = RuntimeDocker }},
		{name: "zero limits", mutate: func(cfg *Config) { cfg.ResourceLimits = ResourceLimits{} }},
		{name: "invalid runtime", mutate: func(cfg *Config) { cfg.Runtime = Runtime("vm") }, wantErr: ErrInvalidRuntime},
		{name: "cpu above range", mutate: func(cfg *Config) { cfg.ResourceLimits.MaxCPU = 101 }, wantErr: ErrInvalidCPULimit},
		{name: "negative cpu", mutate: func(cfg *Config) { cfg.ResourceLimits.MaxCPU = -1 }, wantErr: ErrInvalidCPULimit},
		{name: "negative memory", mutate: func(cfg *Config) { cfg.ResourceLimits.MaxMemoryMB = -1 }, wantErr: ErrInvalidMemoryLimit},
		{name: "negative processes", mutate: func(cfg *Config) { cfg.ResourceLimits.MaxProcesses = -1 }, wantErr: ErrInvalidProcessLimit},
		{name: "negative timeout", mutate: func(cfg *Config) { cfg.ResourceLimits.Timeout = -time.Second }, wantErr: ErrInvalidTimeout},
		{
			name: "docker without image",
			mutate: func(cfg *Config) {
				cfg.Runtime = RuntimeDocker
				cfg.Docker.Image = ""
			},
			wantErr: ErrDockerImageRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			err := ValidateConfig(cfg)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCodeError(t *testing.T) {
	var err error = &CodeError{Message: "ZeroDivisionError: division by zero"}
	assert.Equal(t, "ZeroDivisionError: division by zero", err.Error())
}
