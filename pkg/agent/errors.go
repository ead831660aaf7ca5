package agent

import (
	"errors"
	"fmt"
)

// ErrorKind classifies agent failures
type ErrorKind string

const (
	KindLLM             ErrorKind = "llm"
	KindSandbox         ErrorKind = "sandbox"
	KindMaxIterations   ErrorKind = "max_iterations"
	KindDeserialization ErrorKind = "deserialization"
)

var (
	// ErrLLM matches errors raised by the LLM transport
	ErrLLM = errors.New("llm error")
	// ErrSandbox matches sandbox infrastructure failures
	ErrSandbox = errors.New("sandbox error")
	// ErrMaxIterations matches runs that exhausted their iteration budget
	ErrMaxIterations = errors.New("maximum iterations reached")
	// ErrDeserialization matches final answers that could not be decoded
	ErrDeserialization = errors.New("deserialization error")
)

var kindSentinels = map[ErrorKind]error{
	KindLLM:             ErrLLM,
	KindSandbox:         ErrSandbox,
	KindMaxIterations:   ErrMaxIterations,
	KindDeserialization: ErrDeserialization,
}

// Error is returned by agent runs
type Error struct {
	Kind       ErrorKind
	Iterations int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindLLM:
		return fmt.Sprintf("LLM error: %v", e.Err)
	case KindSandbox:
		return fmt.Sprintf("Sandbox error: %v", e.Err)
	case KindMaxIterations:
		return fmt.Sprintf("Maximum iterations (%d) reached", e.Iterations)
	case KindDeserialization:
		return fmt.Sprintf("Deserialization error: %s", e.Message)
	default:
		return e.Message
	}
}

// Unwrap returns the underlying cause, such as the transport error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind
func (e *Error) Is(target error) bool {
	sentinel, ok := kindSentinels[e.Kind]
	return ok && sentinel == target
}

// IsMaxIterations reports whether err is an iteration budget failure
func IsMaxIterations(err error) bool {
	return errors.Is(err, ErrMaxIterations)
}

// IsDeserialization reports whether err is a final answer decoding failure
func IsDeserialization(err error) bool {
	return errors.Is(err, ErrDeserialization)
}

func llmError(err error) *Error {
	return &Error{Kind: KindLLM, Err: err}
}

func sandboxError(err error) *Error {
	return &Error{Kind: KindSandbox, Err: err}
}

func maxIterationsError(n int) *Error {
	return &Error{Kind: KindMaxIterations, Iterations: n}
}

func deserializationError(message string, cause error) *Error {
	return &Error{Kind: KindDeserialization, Message: message, Err: cause}
}
