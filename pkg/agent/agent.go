package agent

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/harun/dragen/internal/observability"
	"github.com/harun/dragen/internal/tracing"
	"github.com/harun/dragen/pkg/contextstore"
	"github.com/harun/dragen/pkg/sandbox"
	"github.com/harun/dragen/pkg/schema"
	"github.com/rs/zerolog"
)

// Agent drives an LLM through write-execute-observe iterations until it
// produces a final answer. An Agent runs one task at a time; use Fork or Map
// for concurrent work.
type Agent struct {
	id       string
	config   Config
	provider LLMProvider
	sandbox  sandbox.Interpreter
	logger   zerolog.Logger

	callbacks Callbacks
	schema    *schema.Schema

	reads []contextBinding
	write *contextBinding

	mapConcurrency int

	mu       sync.Mutex
	messages []Message
	slot     *finishSlot
}

type contextBinding struct {
	store *contextstore.Store
	key   string
}

// Option configures an Agent
type Option func(*Agent)

// WithConfig replaces the default configuration
func WithConfig(cfg Config) Option {
	return func(a *Agent) {
		a.config = cfg
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(a *Agent) {
		a.logger = logger
	}
}

// WithCallbacks sets the event handlers
func WithCallbacks(callbacks Callbacks) Option {
	return func(a *Agent) {
		a.callbacks = callbacks
	}
}

// WithID overrides the generated agent ID
func WithID(id string) Option {
	return func(a *Agent) {
		a.id = id
	}
}

// WithMapConcurrency caps the number of forks Map runs at once
func WithMapConcurrency(n int) Option {
	return func(a *Agent) {
		a.mapConcurrency = n
	}
}

// New creates an agent that asks provider for completions and runs the
// resulting code in interp
func New(provider LLMProvider, interp sandbox.Interpreter, opts ...Option) (*Agent, error) {
	observability.EnsureRegistered()

	if provider == nil {
		return nil, fmt.Errorf("llm provider is required")
	}
	if interp == nil {
		return nil, fmt.Errorf("sandbox is required")
	}

	a := &Agent{
		id:       "agent-" + tracing.NewRunID()[:8],
		config:   DefaultConfig(),
		provider: provider,
		sandbox:  interp,
		logger:   zerolog.Nop(),
		slot:     &finishSlot{},
	}
	for _, opt := range opts {
		opt(a)
	}

	if err := a.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return a, nil
}

// ID returns the agent's identifier
func (a *Agent) ID() string {
	return a.id
}

// Config returns a copy of the agent's configuration
func (a *Agent) Config() Config {
	return a.config
}

// SetConfig replaces the configuration after validating it
func (a *Agent) SetConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.config = cfg
	return nil
}

// SetCallbacks replaces the event handlers
func (a *Agent) SetCallbacks(callbacks Callbacks) {
	a.callbacks = callbacks
}

// Sandbox returns the interpreter the agent executes code in
func (a *Agent) Sandbox() sandbox.Interpreter {
	return a.sandbox
}

// Messages returns a copy of the conversation log
func (a *Agent) Messages() []Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Message(nil), a.messages...)
}

// RegisterTool makes a tool callable from model-written code
func (a *Agent) RegisterTool(info sandbox.ToolInfo, handler sandbox.Handler) error {
	if handler == nil {
		return fmt.Errorf("tool %s has no handler", info.Name)
	}
	if err := a.sandbox.RegisterTool(info, observedHandler(info.Name, handler)); err != nil {
		return fmt.Errorf("failed to register tool %s: %w", info.Name, err)
	}
	return nil
}

// RegisterFinish installs a finish tool with custom documentation. fn may be
// nil, in which case the first argument becomes the answer.
func (a *Agent) RegisterFinish(info sandbox.ToolInfo, fn FinishFunc) error {
	return a.RegisterTool(info, finishHandler(fn))
}

// SetVariable binds a value in the sandbox namespace
func (a *Agent) SetVariable(name string, value interface{}) error {
	return a.sandbox.SetVariable(name, value)
}

// FinishValue returns the value captured by the last finish() call
func (a *Agent) FinishValue() (interface{}, bool) {
	return a.slot.load()
}

// SetSchema attaches a JSON Schema the final answer must satisfy. doc may be
// a Go value or raw JSON/YAML bytes.
func (a *Agent) SetSchema(doc interface{}) error {
	var (
		s   *schema.Schema
		err error
	)
	switch d := doc.(type) {
	case []byte:
		s, err = schema.Parse(d)
	case json.RawMessage:
		s, err = schema.Parse(d)
	case string:
		s, err = schema.Parse([]byte(d))
	default:
		s, err = schema.Compile(doc)
	}
	if err != nil {
		return err
	}
	a.schema = s
	return nil
}

// SetSchemaFor attaches a schema reflected from T
func SetSchemaFor[T any](a *Agent) error {
	s, err := schema.For[T]()
	if err != nil {
		return err
	}
	a.schema = s
	return nil
}

// ClearSchema removes the attached schema
func (a *Agent) ClearSchema() {
	a.schema = nil
}

// Schema returns the attached schema, or nil
func (a *Agent) Schema() *schema.Schema {
	return a.schema
}

// FromContext makes every run read key from store and prepend it to the task
func (a *Agent) FromContext(store *contextstore.Store, key string) *Agent {
	a.reads = append(a.reads, contextBinding{store: store, key: key})
	return a
}

// ToContext makes every successful run write its result to key in store
func (a *Agent) ToContext(store *contextstore.Store, key string) *Agent {
	a.write = &contextBinding{store: store, key: key}
	return a
}

// Fork returns an agent with the same configuration, tools, schema, callbacks
// and context bindings but a fresh conversation log, finish slot and sandbox
// process
func (a *Agent) Fork() *Agent {
	fork := &Agent{
		id:             tracing.NewForkID(),
		config:         a.config,
		provider:       a.provider,
		sandbox:        a.sandbox.Fork(),
		logger:         a.logger,
		callbacks:      a.callbacks,
		schema:         a.schema,
		reads:          append([]contextBinding(nil), a.reads...),
		mapConcurrency: a.mapConcurrency,
		slot:           &finishSlot{},
	}
	if a.write != nil {
		write := *a.write
		fork.write = &write
	}
	return fork
}

// Close releases the sandbox
func (a *Agent) Close() error {
	return a.sandbox.Close()
}

// ensureFinishTool registers the default finish tool unless one exists
func (a *Agent) ensureFinishTool() error {
	for _, tool := range a.sandbox.Tools() {
		if tool.Name == DefaultFinishTool.Name {
			return nil
		}
	}
	return a.RegisterFinish(DefaultFinishTool, nil)
}

func (a *Agent) systemPrompt() string {
	return BuildSystemPrompt(a.config.System, a.sandbox.Describe())
}

// taskWithContext prepends the configured context reads to task. Values are
// read once, when the run starts.
func (a *Agent) taskWithContext(task string) string {
	if len(a.reads) == 0 {
		return task
	}

	snapshot := contextstore.New()
	keys := make([]string, 0, len(a.reads))
	for _, read := range a.reads {
		raw, ok := read.store.GetRaw(read.key)
		if !ok {
			continue
		}
		if err := snapshot.SetRaw(read.key, raw); err != nil {
			a.logger.Warn().Err(err).Str("key", read.key).Msg("Skipping unreadable context value")
			continue
		}
		keys = append(keys, read.key)
	}
	return snapshot.Inject(task, keys)
}

func (a *Agent) saveResult(value interface{}) error {
	if a.write == nil {
		return nil
	}
	if err := a.write.store.Set(a.write.key, value); err != nil {
		return fmt.Errorf("failed to store result under %q: %w", a.write.key, err)
	}
	return nil
}

func (a *Agent) appendMessage(role Role, content string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.messages = append(a.messages, Message{Role: role, Content: content})
}

func (a *Agent) snapshotMessages() []Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Message(nil), a.messages...)
}
