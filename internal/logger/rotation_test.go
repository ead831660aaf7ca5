package logger

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRotatingWriter(t *testing.T) {
	t.Run("should rotate once the size limit is exceeded", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "agent.log")
		w, err := NewRotatingWriter(path, 1, 0, false)
		require.NoError(t, err)

		chunk := []byte(strings.Repeat("x", 700*1024))
		_, err = w.Write(chunk)
		require.NoError(t, err)
		_, err = w.Write(chunk)
		require.NoError(t, err)
		require.NoError(t, w.Close())

		rotated, err := filepath.Glob(path + ".*")
		require.NoError(t, err)
		assert.Len(t, rotated, 1)

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, int64(len(chunk)), info.Size())
	})

	t.Run("should compress rotated files", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "agent.log")
		w, err := NewRotatingWriter(path, 1, 0, true)
		require.NoError(t, err)

		chunk := []byte(strings.Repeat("y", 700*1024))
		_, _ = w.Write(chunk)
		_, _ = w.Write(chunk)
		require.NoError(t, w.Close())

		compressed, err := filepath.Glob(path + ".*.gz")
		require.NoError(t, err)
		assert.Len(t, compressed, 1)
	})

	t.Run("should be safe for concurrent writers", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "agent.log")
		w, err := NewRotatingWriter(path, 1, 0, false)
		require.NoError(t, err)

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 50; j++ {
					_, _ = w.Write([]byte("line\n"))
				}
			}()
		}
		wg.Wait()
		require.NoError(t, w.Close())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, 400, strings.Count(string(data), "line\n"))
	})

	t.Run("should refuse writes after close", func(t *testing.T) {
		w, err := NewRotatingWriter(filepath.Join(t.TempDir(), "agent.log"), 1, 0, false)
		require.NoError(t, err)
		require.NoError(t, w.Close())

		_, err = w.Write([]byte("late"))
		assert.ErrorIs(t, err, os.ErrClosed)
	})

	t.Run("should remove rotated files past max age", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "agent.log")
		old := path + ".20200101-000000.000000.gz"
		require.NoError(t, os.WriteFile(old, []byte("old"), 0644))
		past := time.Now().AddDate(0, 0, -30)
		require.NoError(t, os.Chtimes(old, past, past))

		w, err := NewRotatingWriter(path, 1, 7, true)
		require.NoError(t, err)
		defer w.Close()

		_, err = os.Stat(old)
		assert.True(t, os.IsNotExist(err))
	})
}
