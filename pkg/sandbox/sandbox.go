package sandbox

import (
	"context"
	"time"
)

// Runtime selects where the interpreter process runs
type Runtime string

const (
	// RuntimeHost runs the interpreter directly on the host
	RuntimeHost Runtime = "host"
	// RuntimeDocker runs the interpreter inside an ephemeral container
	RuntimeDocker Runtime = "docker"
)

// Config defines sandbox configuration
type Config struct {
	// Runtime selects host or docker execution
	Runtime Runtime `json:"runtime" mapstructure:"runtime"`

	// PythonPath is the interpreter binary (default python3)
	PythonPath string `json:"python_path" mapstructure:"python_path"`

	// WorkingDir is the interpreter's working directory
	WorkingDir string `json:"working_dir" mapstructure:"working_dir"`

	// Env holds extra environment variables for the interpreter
	Env map[string]string `json:"env" mapstructure:"env"`

	// ResourceLimits defines resource constraints
	ResourceLimits ResourceLimits `json:"resource_limits" mapstructure:"resource_limits"`

	// FilesystemAccess defines filesystem access rules
	FilesystemAccess FilesystemAccess `json:"filesystem_access" mapstructure:"filesystem_access"`

	// NetworkAccess defines network access rules
	NetworkAccess NetworkAccess `json:"network_access" mapstructure:"network_access"`

	// Docker holds container settings used by RuntimeDocker
	Docker DockerConfig `json:"docker" mapstructure:"docker"`
}

// ResourceLimits defines resource constraints for sandboxed execution
type ResourceLimits struct {
	// MaxCPU limits CPU usage (percentage, 0-100)
	MaxCPU int `json:"max_cpu" mapstructure:"max_cpu"`

	// MaxMemoryMB limits memory usage in megabytes
	MaxMemoryMB int `json:"max_memory_mb" mapstructure:"max_memory_mb"`

	// MaxProcesses limits number of processes
	MaxProcesses int `json:"max_processes" mapstructure:"max_processes"`

	// Timeout limits the duration of one code execution
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

// FilesystemAccess defines filesystem access rules
type FilesystemAccess struct {
	AllowedPaths []string `json:"allowed_paths" mapstructure:"allowed_paths"`
	DeniedPaths  []string `json:"denied_paths" mapstructure:"denied_paths"`
	ReadOnly     bool     `json:"read_only" mapstructure:"read_only"`
}

// NetworkAccess defines network access rules
type NetworkAccess struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
}

// DockerConfig holds container settings
type DockerConfig struct {
	Image       string   `json:"image" mapstructure:"image"`
	Network     string   `json:"network" mapstructure:"network"`
	User        string   `json:"user" mapstructure:"user"`
	SecurityOpt []string `json:"security_opt" mapstructure:"security_opt"`
	CapDrop     []string `json:"cap_drop" mapstructure:"cap_drop"`
	ExtraArgs   []string `json:"extra_args" mapstructure:"extra_args"`
}

// Execution is the outcome of running one code block
type Execution struct {
	// Output holds the lines the code printed. It is also filled when the
	// code raised, up to the point of the exception.
	Output []string `json:"output"`

	// Result is the rendered value of the final expression
	Result string `json:"result,omitempty"`

	// HasResult is false when the final expression produced no value (None)
	HasResult bool `json:"has_result"`

	// Duration is the execution duration
	Duration time.Duration `json:"duration"`
}

// Handler implements a tool callable from sandboxed code. Arguments arrive
// in declaration order as JSON-compatible values.
type Handler func(ctx context.Context, args []interface{}) (interface{}, error)

// Interpreter executes model-written code and exposes registered tools to it
type Interpreter interface {
	// Execute runs code. Failures raised by the code itself are returned as
	// *CodeError; any other error means the interpreter could not run it.
	Execute(ctx context.Context, code string) (Execution, error)

	// RegisterTool makes a tool callable from code, replacing any tool with the same name
	RegisterTool(info ToolInfo, handler Handler) error

	// SetVariable binds a value in the interpreter's global namespace
	SetVariable(name string, value interface{}) error

	// Tools lists registered tools in registration order
	Tools() []ToolInfo

	// Describe renders documentation for every registered tool
	Describe() string

	// Fork returns an interpreter with the same configuration, tools and
	// variables but independent execution state
	Fork() Interpreter

	// Close releases the interpreter
	Close() error
}

// DefaultConfig returns a default sandbox configuration
func DefaultConfig() Config {
	return Config{
		Runtime:    RuntimeHost,
		PythonPath: "python3",
		ResourceLimits: ResourceLimits{
			MaxCPU:       50,
			MaxMemoryMB:  512,
			MaxProcesses: 10,
			Timeout:      30 * time.Second,
		},
		FilesystemAccess: FilesystemAccess{
			DeniedPaths: []string{"/etc", "/sys", "/proc"},
		},
		Docker: DockerConfig{
			Image: "python:3.12-slim",
		},
	}
}

// ValidateConfig validates a sandbox configuration
func ValidateConfig(cfg Config) error {
	switch cfg.Runtime {
	case RuntimeHost, RuntimeDocker:
	default:
		return ErrInvalidRuntime
	}

	if cfg.ResourceLimits.MaxCPU < 0 || cfg.ResourceLimits.MaxCPU > 100 {
		return ErrInvalidCPULimit
	}

	if cfg.ResourceLimits.MaxMemoryMB < 0 {
		return ErrInvalidMemoryLimit
	}

	if cfg.ResourceLimits.MaxProcesses < 0 {
		return ErrInvalidProcessLimit
	}

	if cfg.ResourceLimits.Timeout < 0 {
		return ErrInvalidTimeout
	}

	if cfg.Runtime == RuntimeDocker && cfg.Docker.Image == "" {
		return ErrDockerImageRequired
	}

	return nil
}
