package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger owns a configured zerolog.Logger and the files behind it
type Logger struct {
	zerolog.Logger
	file     *RotatingWriter
	redactor *Redactor
}

// Config holds logger configuration
type Config struct {
	Level     string `json:"level" mapstructure:"level"`         // debug, info, warn, error
	File      string `json:"file" mapstructure:"file"`           // log file path
	Console   bool   `json:"console" mapstructure:"console"`     // enable console output
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`       // pretty format for console
	Redaction bool   `json:"redaction" mapstructure:"redaction"` // mask API keys and secrets
	MaxSize   int    `json:"max_size" mapstructure:"max_size"`   // max size in MB before rotation
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`     // max age in days
	Compress  bool   `json:"compress" mapstructure:"compress"`   // compress rotated logs
}

// DefaultConfig returns default logger configuration
func DefaultConfig() Config {
	return Config{
		Level:     "info",
		Console:   true,
		Pretty:    true,
		Redaction: true,
		MaxSize:   100,
		MaxAge:    7,
		Compress:  true,
	}
}

// New creates a logger and installs it as the global zerolog logger, which
// the sandbox packages log through
func New(cfg Config) (*Logger, error) {
	return newLogger(cfg, os.Stderr)
}

func newLogger(cfg Config, console io.Writer) (*Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	var writers []io.Writer

	if cfg.Console {
		var consoleWriter io.Writer = console
		if cfg.Pretty {
			consoleWriter = zerolog.ConsoleWriter{
				Out:        console,
				TimeFormat: time.RFC3339,
			}
		}
		writers = append(writers, consoleWriter)
	}

	var file *RotatingWriter
	if cfg.File != "" {
		file, err = NewRotatingWriter(cfg.File, cfg.MaxSize, cfg.MaxAge, cfg.Compress)
		if err != nil {
			return nil, err
		}
		writers = append(writers, file)
	}

	var writer io.Writer
	switch len(writers) {
	case 0:
		writer = io.Discard
	case 1:
		writer = writers[0]
	default:
		writer = io.MultiWriter(writers...)
	}

	var redactor *Redactor
	if cfg.Redaction {
		redactor = NewRedactor()
		writer = redactor.Wrap(writer)
	}

	zl := zerolog.New(writer).
		Level(level).
		With().
		Timestamp().
		Logger()

	log.Logger = zl

	return &Logger{
		Logger:   zl,
		file:     file,
		redactor: redactor,
	}, nil
}

// Zerolog returns the underlying zerolog.Logger, for components that take one
func (l *Logger) Zerolog() zerolog.Logger {
	return l.Logger
}

// Close closes the log file, if any
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}
