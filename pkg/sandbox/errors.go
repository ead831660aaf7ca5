package sandbox

import "errors"

var (
	// ErrInvalidRuntime is returned when the sandbox runtime is invalid
	ErrInvalidRuntime = errors.New("invalid sandbox runtime")

	// ErrInvalidCPULimit is returned when the CPU limit is invalid
	ErrInvalidCPULimit = errors.New("invalid CPU limit (must be 0-100)")

	// ErrInvalidMemoryLimit is returned when the memory limit is invalid
	ErrInvalidMemoryLimit = errors.New("invalid memory limit (must be >= 0)")

	// ErrInvalidProcessLimit is returned when the process limit is invalid
	ErrInvalidProcessLimit = errors.New("invalid process limit (must be >= 0)")

	// ErrInvalidTimeout is returned when the timeout is invalid
	ErrInvalidTimeout = errors.New("invalid timeout (must be >= 0)")

	// ErrDockerImageRequired is returned when Docker runtime is enabled without an image
	ErrDockerImageRequired = errors.New("docker image is required for docker runtime")

	// ErrInterpreterClosed is returned when the interpreter has been closed
	ErrInterpreterClosed = errors.New("interpreter is closed")

	// ErrInterpreterExited is returned when the interpreter process exits unexpectedly
	ErrInterpreterExited = errors.New("interpreter exited unexpectedly")

	// ErrExecutionTimeout is returned when execution times out
	ErrExecutionTimeout = errors.New("execution timed out")

	// ErrFilesystemAccessDenied is returned when filesystem access is denied
	ErrFilesystemAccessDenied = errors.New("filesystem access denied")

	// ErrToolNotFound is returned when code calls a tool that is not registered
	ErrToolNotFound = errors.New("tool not found")

	// ErrInvalidToolName is returned when a tool name is not a valid identifier
	ErrInvalidToolName = errors.New("invalid tool name")

	// ErrInvalidArguments is returned when tool arguments do not match the tool's declaration
	ErrInvalidArguments = errors.New("invalid tool arguments")
)

// CodeError is an exception raised by the executed code itself
type CodeError struct {
	Message string
}

func (e *CodeError) Error() string {
	return e.Message
}
