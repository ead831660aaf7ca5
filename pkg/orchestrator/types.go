package orchestrator

import (
	"fmt"

	"github.com/rs/zerolog"
)

// OnFailStrategy defines how a fan-out reacts when one of its tasks fails
type OnFailStrategy string

const (
	OnFailAbort    OnFailStrategy = "abort"    // Cancel the remaining tasks
	OnFailContinue OnFailStrategy = "continue" // Let the remaining tasks finish
)

// Validate checks the strategy is a known value
func (s OnFailStrategy) Validate() error {
	switch s {
	case OnFailAbort, OnFailContinue:
		return nil
	default:
		return fmt.Errorf("invalid on-fail strategy: %s", s)
	}
}

// Logger interface for logging
type Logger interface {
	Info(msg string, fields ...interface{})
	Error(msg string, err error, fields ...interface{})
	Debug(msg string, fields ...interface{})
}

// ZerologLogger adapts a zerolog.Logger to Logger. Fields are alternating
// key/value pairs.
type ZerologLogger struct {
	logger zerolog.Logger
}

// NewZerologLogger wraps logger
func NewZerologLogger(logger zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{logger: logger}
}

func (l *ZerologLogger) Info(msg string, fields ...interface{}) {
	l.logger.Info().Fields(fields).Msg(msg)
}

func (l *ZerologLogger) Error(msg string, err error, fields ...interface{}) {
	l.logger.Error().Err(err).Fields(fields).Msg(msg)
}

func (l *ZerologLogger) Debug(msg string, fields ...interface{}) {
	l.logger.Debug().Fields(fields).Msg(msg)
}
