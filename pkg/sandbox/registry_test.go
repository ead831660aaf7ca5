package sandbox

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoHandler(ctx context.Context, args []interface{}) (interface{}, error) {
	return args, nil
}

func TestToolRegistry_Register(t *testing.T) {
	t.Run("should list tools in registration order", func(t *testing.T) {
		r := NewToolRegistry()
		require.NoError(t, r.Register(NewTool("b", "B"), echoHandler))
		require.NoError(t, r.Register(NewTool("a", "A"), echoHandler))

		tools := r.List()
		require.Len(t, tools, 2)
		assert.Equal(t, "b", tools[0].Name)
		assert.Equal(t, "a", tools[1].Name)
	})

	t.Run("should replace a tool in place", func(t *testing.T) {
		r := NewToolRegistry()
		require.NoError(t, r.Register(NewTool("a", "first"), echoHandler))
		require.NoError(t, r.Register(NewTool("b", "B"), echoHandler))
		require.NoError(t, r.Register(NewTool("a", "second"), echoHandler))

		tools := r.List()
		require.Len(t, tools, 2)
		assert.Equal(t, "second", tools[0].Description)
	})

	t.Run("should reject invalid names and missing handlers", func(t *testing.T) {
		r := NewToolRegistry()
		assert.ErrorIs(t, r.Register(NewTool("not valid", ""), echoHandler), ErrInvalidToolName)
		assert.Error(t, r.Register(NewTool("ok", ""), nil))
		assert.False(t, r.Has("ok"))
	})
}

func TestToolRegistry_Call(t *testing.T) {
	r := NewToolRegistry()
	require.NoError(t, r.Register(searchTool(), echoHandler))
	ctx := context.Background()

	t.Run("should pass validated arguments to the handler", func(t *testing.T) {
		result, err := r.Call(ctx, "search", []interface{}{"go", float64(3)})
		require.NoError(t, err)
		assert.Equal(t, []interface{}{"go", float64(3)}, result)
	})

	t.Run("should accept omitted and null optional arguments", func(t *testing.T) {
		_, err := r.Call(ctx, "search", []interface{}{"go"})
		require.NoError(t, err)

		_, err = r.Call(ctx, "search", []interface{}{"go", nil})
		require.NoError(t, err)
	})

	t.Run("should reject wrong types", func(t *testing.T) {
		_, err := r.Call(ctx, "search", []interface{}{float64(1)})
		assert.ErrorIs(t, err, ErrInvalidArguments)

		_, err = r.Call(ctx, "search", []interface{}{"go", 2.5})
		assert.ErrorIs(t, err, ErrInvalidArguments)
	})

	t.Run("should reject missing and extra arguments", func(t *testing.T) {
		_, err := r.Call(ctx, "search", nil)
		assert.ErrorIs(t, err, ErrInvalidArguments)

		_, err = r.Call(ctx, "search", []interface{}{"go", float64(1), true})
		assert.ErrorIs(t, err, ErrInvalidArguments)
	})

	t.Run("should report unknown tools", func(t *testing.T) {
		_, err := r.Call(ctx, "missing", nil)
		assert.ErrorIs(t, err, ErrToolNotFound)
	})

	t.Run("should return handler errors", func(t *testing.T) {
		boom := errors.New("boom")
		require.NoError(t, r.Register(NewTool("fail", "Fails"), func(ctx context.Context, args []interface{}) (interface{}, error) {
			return nil, boom
		}))
		_, err := r.Call(ctx, "fail", nil)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("should leave untyped arguments unconstrained", func(t *testing.T) {
		require.NoError(t, r.Register(NewTool("finish", "Done").Arg("answer", "any", "Answer"), echoHandler))
		for _, arg := range []interface{}{"text", float64(1), map[string]interface{}{"a": true}, nil} {
			_, err := r.Call(ctx, "finish", []interface{}{arg})
			assert.NoError(t, err)
		}
	})
}

func TestToolRegistry_Clone(t *testing.T) {
	r := NewToolRegistry()
	require.NoError(t, r.Register(NewTool("a", "A"), echoHandler))

	clone := r.Clone()
	require.NoError(t, clone.Register(NewTool("b", "B"), echoHandler))

	assert.True(t, clone.Has("a"))
	assert.True(t, clone.Has("b"))
	assert.False(t, r.Has("b"))
}

func TestJSONType(t *testing.T) {
	assert.Equal(t, "string", jsonType("str"))
	assert.Equal(t, "integer", jsonType("int"))
	assert.Equal(t, "number", jsonType("float"))
	assert.Equal(t, "boolean", jsonType("Bool"))
	assert.Equal(t, "array", jsonType("list"))
	assert.Equal(t, "object", jsonType("dict"))
	assert.Equal(t, "", jsonType("any"))
	assert.Equal(t, "", jsonType(""))
}
