package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/harun/dragen/pkg/sandbox"
)

// FinishFunc turns the arguments of a custom finish tool into the final
// answer. A nil FinishFunc captures the first argument.
type FinishFunc func(args []interface{}) (interface{}, error)

// DefaultFinishTool documents the finish tool registered when no tool named
// "finish" exists
var DefaultFinishTool = sandbox.NewTool("finish", "Complete the task and return the final answer").
	Arg("answer", "any", "The final answer to return").
	Returning("any")

// finishSlot holds the answer captured by the finish tool during one run
type finishSlot struct {
	mu    sync.Mutex
	value interface{}
	set   bool
}

func (s *finishSlot) store(value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = value
	s.set = true
}

func (s *finishSlot) load() (interface{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.set
}

func (s *finishSlot) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = nil
	s.set = false
}

// runState is what tool handlers see of the run that invoked them
type runState struct {
	slot      *finishSlot
	callbacks Callbacks
}

type runStateKey struct{}

func withRunState(ctx context.Context, state *runState) context.Context {
	return context.WithValue(ctx, runStateKey{}, state)
}

func runStateFrom(ctx context.Context) *runState {
	state, _ := ctx.Value(runStateKey{}).(*runState)
	return state
}

// finishHandler captures the final answer into the slot of the calling run
func finishHandler(fn FinishFunc) sandbox.Handler {
	return func(ctx context.Context, args []interface{}) (interface{}, error) {
		state := runStateFrom(ctx)
		if state == nil {
			return nil, errors.New("finish called outside of an agent run")
		}

		var value interface{}
		if fn != nil {
			v, err := fn(args)
			if err != nil {
				return nil, err
			}
			value = v
		} else if len(args) > 0 {
			value = args[0]
		}

		state.slot.store(value)
		return FinishMarker + plainText(value), nil
	}
}

// observedHandler reports tool calls made from sandbox code as events
func observedHandler(name string, handler sandbox.Handler) sandbox.Handler {
	return func(ctx context.Context, args []interface{}) (interface{}, error) {
		state := runStateFrom(ctx)
		if state != nil {
			state.callbacks.Emit(ToolCallEvent{Name: name, Args: args})
		}

		result, err := handler(ctx, args)
		if err == nil && state != nil {
			state.callbacks.Emit(ToolResultEvent{Name: name, Result: result})
		}
		return result, err
	}
}

// finishCalled reports whether an execution completed the task
func finishCalled(output string, slot *finishSlot) bool {
	if strings.Contains(output, FinishMarker) {
		return true
	}
	_, ok := slot.load()
	return ok
}

// plainText renders a value for the model. Strings are kept verbatim, nil is
// None and everything else is compact JSON.
func plainText(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return "None"
	case string:
		return v
	case json.RawMessage:
		return string(v)
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprint(value)
	}
	return string(data)
}

// retryFeedback builds the corrective message sent after a failed attempt.
// payload is omitted when empty.
func retryFeedback(headline, detail, payload string) string {
	var b strings.Builder
	b.WriteString(headline)
	b.WriteString("\n\n")
	b.WriteString(detail)
	b.WriteString("\n\n")
	if payload != "" {
		fmt.Fprintf(&b, "Your output:\n```\n%s\n```\n\n", payload)
	}
	b.WriteString("Please fix and try again.")
	return b.String()
}

const (
	headlineSchema      = "Your output did not match the expected schema."
	headlineFinishBlock = "Error parsing your <finish> block:"
	headlineFinishCall  = "Error parsing your finish() output:"
)

// decoder turns canonical JSON into the caller's result type
type decoder func(data []byte) (interface{}, error)

func decodeAs[T any]() decoder {
	return func(data []byte) (interface{}, error) {
		var out T
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, err
		}
		return out, nil
	}
}

func decodeRaw(data []byte) (interface{}, error) {
	if !json.Valid(data) {
		var discard interface{}
		return nil, json.Unmarshal(data, &discard)
	}
	return json.RawMessage(append([]byte(nil), data...)), nil
}
