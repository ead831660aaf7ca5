package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/harun/dragen/pkg/sandbox"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockProvider is a mock implementation of LLMProvider
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Call(ctx context.Context, request LLMRequest) (*LLMResponse, error) {
	args := m.Called(ctx, request)
	resp, _ := args.Get(0).(*LLMResponse)
	return resp, args.Error(1)
}

func (m *MockProvider) Provider() string {
	return "mock"
}

// reply queues one completion on the mock
func (m *MockProvider) reply(content string) *MockProvider {
	m.On("Call", mock.Anything, mock.Anything).Return(&LLMResponse{Content: content}, nil).Once()
	return m
}

// funcProvider answers through a function, for concurrent tests where call
// order is not fixed
type funcProvider struct {
	fn func(request LLMRequest) (string, error)
}

func (p *funcProvider) Call(ctx context.Context, request LLMRequest) (*LLMResponse, error) {
	content, err := p.fn(request)
	if err != nil {
		return nil, err
	}
	return &LLMResponse{Content: content, Usage: &TokenUsage{InputTokens: 10, OutputTokens: 5}}, nil
}

func (p *funcProvider) Provider() string {
	return "func"
}

// script is what the fake interpreter does for one piece of code
type script func(ctx context.Context, f *fakeInterpreter) (sandbox.Execution, error)

// fakeInterpreter is an in-memory interpreter that runs scripts keyed by code
type fakeInterpreter struct {
	mu       sync.Mutex
	tools    *sandbox.ToolRegistry
	vars     map[string]interface{}
	scripts  map[string]script
	executed []string
	closed   bool
}

func newFakeInterpreter() *fakeInterpreter {
	return &fakeInterpreter{
		tools:   sandbox.NewToolRegistry(),
		vars:    make(map[string]interface{}),
		scripts: make(map[string]script),
	}
}

func (f *fakeInterpreter) on(code string, s script) *fakeInterpreter {
	f.scripts[code] = s
	return f
}

func (f *fakeInterpreter) Execute(ctx context.Context, code string) (sandbox.Execution, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return sandbox.Execution{}, sandbox.ErrInterpreterClosed
	}
	f.executed = append(f.executed, code)
	s, ok := f.scripts[code]
	f.mu.Unlock()

	if !ok {
		return sandbox.Execution{}, &sandbox.CodeError{Message: fmt.Sprintf("NameError: no script for %q", code)}
	}
	return s(ctx, f)
}

func (f *fakeInterpreter) RegisterTool(info sandbox.ToolInfo, handler sandbox.Handler) error {
	return f.tools.Register(info, handler)
}

func (f *fakeInterpreter) SetVariable(name string, value interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vars[name] = value
	return nil
}

func (f *fakeInterpreter) Tools() []sandbox.ToolInfo {
	return f.tools.List()
}

func (f *fakeInterpreter) Describe() string {
	return sandbox.Describe(f.tools.List())
}

func (f *fakeInterpreter) Fork() sandbox.Interpreter {
	f.mu.Lock()
	defer f.mu.Unlock()

	fork := &fakeInterpreter{
		tools:   f.tools.Clone(),
		vars:    make(map[string]interface{}, len(f.vars)),
		scripts: f.scripts,
	}
	for k, v := range f.vars {
		fork.vars[k] = v
	}
	return fork
}

func (f *fakeInterpreter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeInterpreter) executedCode() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.executed...)
}

func (f *fakeInterpreter) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// printing prints lines
func printing(lines ...string) script {
	return func(ctx context.Context, f *fakeInterpreter) (sandbox.Execution, error) {
		return sandbox.Execution{Output: lines}, nil
	}
}

// failing raises an exception
func failing(message string) script {
	return func(ctx context.Context, f *fakeInterpreter) (sandbox.Execution, error) {
		return sandbox.Execution{}, &sandbox.CodeError{Message: message}
	}
}

// calling invokes a registered tool the way generated code would and shows
// its return value as the expression result
func calling(name string, args ...interface{}) script {
	return func(ctx context.Context, f *fakeInterpreter) (sandbox.Execution, error) {
		value, err := f.tools.Call(ctx, name, args)
		if err != nil {
			return sandbox.Execution{}, &sandbox.CodeError{Message: "RuntimeError: " + err.Error()}
		}
		if value == nil {
			return sandbox.Execution{}, nil
		}
		return sandbox.Execution{Result: fmt.Sprintf("%q", value), HasResult: true}, nil
	}
}

// callingQuietly invokes a tool but prints nothing, like `x = finish(v)`
func callingQuietly(name string, args ...interface{}) script {
	return func(ctx context.Context, f *fakeInterpreter) (sandbox.Execution, error) {
		if _, err := f.tools.Call(ctx, name, args); err != nil {
			return sandbox.Execution{}, &sandbox.CodeError{Message: "RuntimeError: " + err.Error()}
		}
		return sandbox.Execution{}, nil
	}
}

func codeBlock(code string) string {
	return "```python\n" + code + "\n```"
}

func finishBlock(body string) string {
	return "<finish>" + body + "</finish>"
}

// eventRecorder collects events in order
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) callbacks() Callbacks {
	return Callbacks{
		OnEvent: func(e Event) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events = append(r.events, e)
		},
	}
}

func (r *eventRecorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Kind())
	}
	return out
}

func (r *eventRecorder) ofKind(kind EventKind) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Kind() == kind {
			out = append(out, e)
		}
	}
	return out
}

func newTestAgent(t *testing.T, provider LLMProvider, interp sandbox.Interpreter, opts ...Option) *Agent {
	t.Helper()
	a, err := New(provider, interp, opts...)
	require.NoError(t, err)
	return a
}

func lastUserMessage(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return messages[i].Content
		}
	}
	return ""
}

func taskOf(request LLMRequest) string {
	for _, msg := range request.Messages {
		if msg.Role == RoleUser {
			return strings.TrimSpace(msg.Content)
		}
	}
	return ""
}

func executionOf(output []string, result string, hasResult bool) sandbox.Execution {
	return sandbox.Execution{Output: output, Result: result, HasResult: hasResult}
}
