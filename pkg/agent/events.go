package agent

import (
	"fmt"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

// EventKind enumerates the events an agent emits
type EventKind string

const (
	EventIterationStart EventKind = "iteration_start"
	EventLLMRequest     EventKind = "llm_request"
	EventLLMResponse    EventKind = "llm_response"
	EventThinking       EventKind = "thinking"
	EventCodeGenerated  EventKind = "code_generated"
	EventCodeExecuted   EventKind = "code_executed"
	EventToolCall       EventKind = "tool_call"
	EventToolResult     EventKind = "tool_result"
	EventFinish         EventKind = "finish"
	EventError          EventKind = "error"
)

// Event is emitted synchronously while an agent runs
type Event interface {
	Kind() EventKind
}

type IterationStartEvent struct {
	Iteration     int
	MaxIterations int
}

type LLMRequestEvent struct {
	MessageCount int
}

// LLMResponseEvent carries the raw model output. TokensUsed is zero when
// the provider did not report usage.
type LLMResponseEvent struct {
	Content    string
	TokensUsed int
}

type ThinkingEvent struct {
	Content string
}

type CodeGeneratedEvent struct {
	Code string
}

// CodeExecutedEvent carries the rendered execution output. Success is false
// when the output reports an execution error.
type CodeExecutedEvent struct {
	Code    string
	Output  string
	Success bool
}

type ToolCallEvent struct {
	Name string
	Args []interface{}
}

type ToolResultEvent struct {
	Name   string
	Result interface{}
}

type FinishEvent struct {
	Value interface{}
}

type ErrorEvent struct {
	Message string
}

func (IterationStartEvent) Kind() EventKind { return EventIterationStart }
func (LLMRequestEvent) Kind() EventKind     { return EventLLMRequest }
func (LLMResponseEvent) Kind() EventKind    { return EventLLMResponse }
func (ThinkingEvent) Kind() EventKind       { return EventThinking }
func (CodeGeneratedEvent) Kind() EventKind  { return EventCodeGenerated }
func (CodeExecutedEvent) Kind() EventKind   { return EventCodeExecuted }
func (ToolCallEvent) Kind() EventKind       { return EventToolCall }
func (ToolResultEvent) Kind() EventKind     { return EventToolResult }
func (FinishEvent) Kind() EventKind         { return EventFinish }
func (ErrorEvent) Kind() EventKind          { return EventError }

// Callbacks holds one optional handler per event kind plus a catch-all.
// OnEvent runs after the kind-specific handler.
type Callbacks struct {
	OnIterationStart func(IterationStartEvent)
	OnLLMRequest     func(LLMRequestEvent)
	OnLLMResponse    func(LLMResponseEvent)
	OnThinking       func(ThinkingEvent)
	OnCodeGenerated  func(CodeGeneratedEvent)
	OnCodeExecuted   func(CodeExecutedEvent)
	OnToolCall       func(ToolCallEvent)
	OnToolResult     func(ToolResultEvent)
	OnFinish         func(FinishEvent)
	OnError          func(ErrorEvent)
	OnEvent          func(Event)
}

// Emit dispatches event to the matching handler, then to OnEvent
func (c Callbacks) Emit(event Event) {
	switch e := event.(type) {
	case IterationStartEvent:
		if c.OnIterationStart != nil {
			c.OnIterationStart(e)
		}
	case LLMRequestEvent:
		if c.OnLLMRequest != nil {
			c.OnLLMRequest(e)
		}
	case LLMResponseEvent:
		if c.OnLLMResponse != nil {
			c.OnLLMResponse(e)
		}
	case ThinkingEvent:
		if c.OnThinking != nil {
			c.OnThinking(e)
		}
	case CodeGeneratedEvent:
		if c.OnCodeGenerated != nil {
			c.OnCodeGenerated(e)
		}
	case CodeExecutedEvent:
		if c.OnCodeExecuted != nil {
			c.OnCodeExecuted(e)
		}
	case ToolCallEvent:
		if c.OnToolCall != nil {
			c.OnToolCall(e)
		}
	case ToolResultEvent:
		if c.OnToolResult != nil {
			c.OnToolResult(e)
		}
	case FinishEvent:
		if c.OnFinish != nil {
			c.OnFinish(e)
		}
	case ErrorEvent:
		if c.OnError != nil {
			c.OnError(e)
		}
	}

	if c.OnEvent != nil {
		c.OnEvent(event)
	}
}

// Verbose returns callbacks that log every event to logger
func Verbose(logger zerolog.Logger) Callbacks {
	return Callbacks{
		OnIterationStart: func(e IterationStartEvent) {
			logger.Info().Int("iteration", e.Iteration).Int("max_iterations", e.MaxIterations).Msg("Iteration started")
		},
		OnLLMRequest: func(e LLMRequestEvent) {
			logger.Debug().Int("messages", e.MessageCount).Msg("Calling LLM")
		},
		OnLLMResponse: func(e LLMResponseEvent) {
			logger.Debug().Int("tokens", e.TokensUsed).Str("content", truncate(e.Content, 500)).Msg("LLM responded")
		},
		OnThinking: func(e ThinkingEvent) {
			logger.Info().Str("thinking", e.Content).Msg("Thinking")
		},
		OnCodeGenerated: func(e CodeGeneratedEvent) {
			logger.Info().Str("code", e.Code).Msg("Code generated")
		},
		OnCodeExecuted: func(e CodeExecutedEvent) {
			ev := logger.Info()
			if !e.Success {
				ev = logger.Warn()
			}
			ev.Bool("success", e.Success).Str("output", truncate(e.Output, 1000)).Msg("Code executed")
		},
		OnToolCall: func(e ToolCallEvent) {
			logger.Info().Str("tool", e.Name).Interface("args", e.Args).Msg("Tool called")
		},
		OnToolResult: func(e ToolResultEvent) {
			logger.Debug().Str("tool", e.Name).Str("result", truncate(fmt.Sprint(e.Result), 500)).Msg("Tool returned")
		},
		OnFinish: func(e FinishEvent) {
			logger.Info().Interface("value", e.Value).Msg("Finished")
		},
		OnError: func(e ErrorEvent) {
			logger.Error().Str("error", e.Message).Msg("Agent error")
		},
	}
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
