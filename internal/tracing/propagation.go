package tracing

import (
	"context"

	"github.com/rs/zerolog"
)

// PropagateToFork prepares the context of a forked agent. It keeps the
// trace ID, remembers the current run as parent and assigns a new run ID.
func PropagateToFork(ctx context.Context, forkID string) context.Context {
	traceID := GetTraceID(ctx)
	if traceID == "" {
		traceID = NewTraceID()
	}

	newCtx := WithTraceID(ctx, traceID)
	if parent := GetRunID(ctx); parent != "" {
		newCtx = WithParentRunID(newCtx, parent)
	}
	newCtx = WithRunID(newCtx, NewRunID())
	return WithAgentID(newCtx, forkID)
}

// PropagateToLogger adds tracing context to a zerolog logger
func PropagateToLogger(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	tc := FromContext(ctx)
	lc := logger.With()

	if tc.TraceID != "" {
		lc = lc.Str("trace_id", tc.TraceID)
	}
	if tc.RunID != "" {
		lc = lc.Str("run_id", tc.RunID)
	}
	if tc.AgentID != "" {
		lc = lc.Str("agent_id", tc.AgentID)
	}
	if tc.ParentRunID != "" {
		lc = lc.Str("parent_run_id", tc.ParentRunID)
	}

	return lc.Logger()
}

// LoggerFromContext creates a logger with tracing context from the given context
func LoggerFromContext(ctx context.Context, baseLogger zerolog.Logger) zerolog.Logger {
	return PropagateToLogger(ctx, baseLogger)
}
