package tracing

import (
	"context"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// TraceIDKey is the context key for trace ID
	TraceIDKey ContextKey = "trace_id"
	// RunIDKey is the context key for run ID
	RunIDKey ContextKey = "run_id"
	// AgentIDKey is the context key for agent ID
	AgentIDKey ContextKey = "agent_id"
	// ParentRunIDKey is the context key for the run that forked the current one
	ParentRunIDKey ContextKey = "parent_run_id"
)

const forkIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// TraceContext holds tracing information
type TraceContext struct {
	TraceID     string
	RunID       string
	AgentID     string
	ParentRunID string
}

// NewTraceID generates a new trace ID
func NewTraceID() string {
	return uuid.New().String()
}

// NewRunID generates a new run ID
func NewRunID() string {
	return uuid.New().String()
}

// NewForkID generates a short agent ID for a forked agent
func NewForkID() string {
	id, err := gonanoid.Generate(forkIDAlphabet, 10)
	if err != nil {
		return "fork-" + uuid.New().String()[:10]
	}
	return "fork-" + id
}

// WithTraceID adds a trace ID to the context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// WithRunID adds a run ID to the context
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// WithAgentID adds an agent ID to the context
func WithAgentID(ctx context.Context, agentID string) context.Context {
	return context.WithValue(ctx, AgentIDKey, agentID)
}

// WithParentRunID records the run that forked the current one
func WithParentRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, ParentRunIDKey, runID)
}

func getString(ctx context.Context, key ContextKey) string {
	if value, ok := ctx.Value(key).(string); ok {
		return value
	}
	return ""
}

// GetTraceID retrieves the trace ID from the context
func GetTraceID(ctx context.Context) string {
	return getString(ctx, TraceIDKey)
}

// GetRunID retrieves the run ID from the context
func GetRunID(ctx context.Context) string {
	return getString(ctx, RunIDKey)
}

// GetAgentID retrieves the agent ID from the context
func GetAgentID(ctx context.Context) string {
	return getString(ctx, AgentIDKey)
}

// GetParentRunID retrieves the parent run ID from the context
func GetParentRunID(ctx context.Context) string {
	return getString(ctx, ParentRunIDKey)
}

// FromContext extracts all tracing information from the context
func FromContext(ctx context.Context) *TraceContext {
	return &TraceContext{
		TraceID:     GetTraceID(ctx),
		RunID:       GetRunID(ctx),
		AgentID:     GetAgentID(ctx),
		ParentRunID: GetParentRunID(ctx),
	}
}

// NewRunContext prepares ctx for one agent run: a trace ID is added when
// missing and a fresh run ID is assigned, except for a context prepared by
// PropagateToFork, whose run ID already belongs to the forked run
func NewRunContext(ctx context.Context, agentID string) context.Context {
	if GetTraceID(ctx) == "" {
		ctx = WithTraceID(ctx, NewTraceID())
	}
	if !isForkRun(ctx) {
		ctx = WithRunID(ctx, NewRunID())
	}
	if agentID != "" {
		ctx = WithAgentID(ctx, agentID)
	}
	return ctx
}

func isForkRun(ctx context.Context) bool {
	parent := GetParentRunID(ctx)
	run := GetRunID(ctx)
	return parent != "" && run != "" && run != parent
}
