package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	t.Run("should write JSON to the console when not pretty", func(t *testing.T) {
		var buf bytes.Buffer
		l, err := newLogger(Config{Level: "info", Console: true}, &buf)
		require.NoError(t, err)
		defer l.Close()

		l.Info().Str("run_id", "r1").Msg("run started")

		assert.Contains(t, buf.String(), `"message":"run started"`)
		assert.Contains(t, buf.String(), `"run_id":"r1"`)
	})

	t.Run("should filter below the configured level", func(t *testing.T) {
		var buf bytes.Buffer
		l, err := newLogger(Config{Level: "warn", Console: true}, &buf)
		require.NoError(t, err)

		l.Info().Msg("hidden")
		l.Warn().Msg("shown")

		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown")
	})

	t.Run("should fall back to info on an unknown level", func(t *testing.T) {
		var buf bytes.Buffer
		l, err := newLogger(Config{Level: "loud", Console: true}, &buf)
		require.NoError(t, err)

		l.Debug().Msg("debug line")
		l.Info().Msg("info line")

		assert.NotContains(t, buf.String(), "debug line")
		assert.Contains(t, buf.String(), "info line")
	})

	t.Run("should redact keys when enabled", func(t *testing.T) {
		var buf bytes.Buffer
		l, err := newLogger(Config{Level: "info", Console: true, Redaction: true}, &buf)
		require.NoError(t, err)

		l.Info().Str("task", "use sk-abcdefghijklmnopqrstuvwxyz123").Msg("task")

		assert.NotContains(t, buf.String(), "sk-abcdefghijklmnopqrstuvwxyz123")
		assert.Contains(t, buf.String(), redacted)
	})

	t.Run("should write to the log file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "dragen.log")
		l, err := newLogger(Config{Level: "info", File: path, MaxSize: 1}, &bytes.Buffer{})
		require.NoError(t, err)

		l.Info().Msg("to file")
		require.NoError(t, l.Close())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "to file")
	})

	t.Run("should discard when there is no output", func(t *testing.T) {
		l, err := newLogger(Config{Level: "info"}, nil)
		require.NoError(t, err)

		l.Info().Msg("nowhere")
		assert.NoError(t, l.Close())
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.Level)
	assert.True(t, cfg.Console)
	assert.True(t, cfg.Redaction)
	assert.Equal(t, 100, cfg.MaxSize)
}
