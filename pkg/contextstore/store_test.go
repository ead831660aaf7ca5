package contextstore

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type planWriter struct {
	Title string   `json:"title"`
	Steps []string `json:"steps"`
}

type planReader struct {
	Title string `json:"title"`
}

func TestStore_SetGet(t *testing.T) {
	t.Run("should round-trip a value", func(t *testing.T) {
		s := New()
		require.NoError(t, s.Set("plan", planWriter{Title: "X", Steps: []string{"a"}}))

		got, ok, err := Get[planWriter](s, "plan")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, planWriter{Title: "X", Steps: []string{"a"}}, got)
	})

	t.Run("should decode into a different type with the same shape", func(t *testing.T) {
		s := New()
		require.NoError(t, s.Set("plan", planWriter{Title: "X"}))

		got, ok, err := Get[planReader](s, "plan")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "X", got.Title)
	})

	t.Run("should report absent keys", func(t *testing.T) {
		s := New()
		_, ok, err := Get[int](s, "missing")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("should report decode errors", func(t *testing.T) {
		s := New()
		require.NoError(t, s.Set("n", "not a number"))
		_, ok, err := Get[int](s, "n")
		assert.True(t, ok)
		assert.Error(t, err)
	})

	t.Run("should reject empty keys", func(t *testing.T) {
		s := New()
		assert.Error(t, s.Set("", 1))
	})

	t.Run("should reject values that cannot be serialized", func(t *testing.T) {
		s := New()
		assert.Error(t, s.Set("ch", make(chan int)))
		assert.False(t, s.Contains("ch"))
	})
}

func TestStore_SetRaw(t *testing.T) {
	s := New()
	require.NoError(t, s.SetRaw("k", []byte(`{"a":1}`)))
	assert.Error(t, s.SetRaw("bad", []byte(`{`)))

	raw, ok := s.GetRaw("k")
	require.True(t, ok)
	assert.JSONEq(t, `{"a":1}`, string(raw))

	// mutating the returned copy must not affect the store
	raw[0] = 'x'
	again, _ := s.GetRaw("k")
	assert.JSONEq(t, `{"a":1}`, string(again))
}

func TestStore_KeysRemoveClear(t *testing.T) {
	s := New()
	require.NoError(t, s.Set("b", 2))
	require.NoError(t, s.Set("a", 1))

	assert.Equal(t, []string{"a", "b"}, s.Keys())
	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Contains("a"))

	assert.True(t, s.Remove("a"))
	assert.False(t, s.Remove("a"))
	assert.False(t, s.Contains("a"))

	s.Clear()
	assert.Empty(t, s.Keys())
	assert.Equal(t, 0, s.Len())
}

func TestStore_SharedHandle(t *testing.T) {
	s := New()
	handle := s

	require.NoError(t, handle.Set("k", "v"))
	got, ok, err := Get[string](s, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", got)
}

func TestStore_Inject(t *testing.T) {
	t.Run("should prepend a context block for present keys", func(t *testing.T) {
		s := New()
		require.NoError(t, s.Set("plan", map[string]string{"title": "X"}))
		require.NoError(t, s.Set("notes", []int{1}))

		out := s.Inject("Write it", []string{"plan", "missing", "notes"})
		expected := "<context>\n=== PLAN ===\n{\n  \"title\": \"X\"\n}\n\n=== NOTES ===\n[\n  1\n]\n</context>\n\nWrite it"
		assert.Equal(t, expected, out)
	})

	t.Run("should return the task unchanged when nothing is present", func(t *testing.T) {
		s := New()
		assert.Equal(t, "task", s.Inject("task", []string{"missing"}))
		assert.Equal(t, "task", s.Inject("task", nil))
	})
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := New()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", n)
			_ = s.Set(key, n)
			_, _, _ = Get[int](s, key)
			_ = s.Keys()
		}(i)
	}

	wg.Wait()
	assert.Equal(t, 50, s.Len())
}
