package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/harun/dragen/internal/observability"
	"github.com/harun/dragen/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
)

// Chat sends message in a conversation that persists across calls. A code
// block is executed and fed back; a finish block, a finish() call or a plain
// reply ends the turn and is returned as text.
func (a *Agent) Chat(ctx context.Context, message string) (reply string, err error) {
	ctx = tracing.NewRunContext(ctx, a.id)
	ctx, span := tracing.StartSpan(ctx, tracing.TracerName, "agent.chat",
		attribute.String("agent_id", a.id),
		attribute.String("model", a.config.Model))
	logger := tracing.LoggerFromContext(ctx, a.logger)

	start := time.Now()
	iterations := 0
	defer func() {
		outcome := runOutcome(err)
		observability.RecordRun("chat", outcome, time.Since(start), iterations)
		observability.RecordRunAudit(ctx, a.id, "chat", outcome, iterations)
		tracing.EndSpan(span, err)
	}()

	a.mu.Lock()
	empty := len(a.messages) == 0
	a.mu.Unlock()
	if empty {
		if err := a.ensureFinishTool(); err != nil {
			return "", sandboxError(err)
		}
		a.appendMessage(RoleSystem, a.systemPrompt())
	}

	a.slot.clear()
	a.appendMessage(RoleUser, message)

	ctx = withRunState(ctx, &runState{slot: a.slot, callbacks: a.callbacks})
	parser := NewParser(a.config.ThinkingTag)
	maxIterations := a.config.MaxIterations

	for {
		iterations++
		if iterations > maxIterations {
			a.callbacks.Emit(ErrorEvent{Message: fmt.Sprintf("Max iterations (%d) reached", maxIterations)})
			return "", maxIterationsError(maxIterations)
		}
		a.callbacks.Emit(IterationStartEvent{Iteration: iterations, MaxIterations: maxIterations})

		content, err := a.complete(ctx, a.snapshotMessages())
		if err != nil {
			return "", err
		}

		parsed := parser.Parse(content)
		if parsed.HasThinking {
			a.callbacks.Emit(ThinkingEvent{Content: parsed.Thinking})
		}
		a.appendMessage(RoleAssistant, content)

		switch parsed.Kind {
		case ResponseFinish:
			a.callbacks.Emit(FinishEvent{Value: parsed.Body})
			return parsed.Body, nil

		case ResponseCode:
			a.callbacks.Emit(CodeGeneratedEvent{Code: parsed.Body})
			output, err := a.execute(ctx, parsed.Body)
			if err != nil {
				return "", err
			}
			a.callbacks.Emit(CodeExecutedEvent{Code: parsed.Body, Output: output, Success: !executionFailed(output)})

			if finishCalled(output, a.slot) {
				value, ok := a.slot.load()
				if !ok {
					return "", nil
				}
				a.callbacks.Emit(FinishEvent{Value: value})
				return plainText(value), nil
			}
			a.appendMessage(RoleUser, executionFeedback(output))
			logger.Debug().Int("iteration", iterations).Msg("Chat turn continues after execution")

		default:
			return content, nil
		}
	}
}

// Clear drops the conversation so the next Chat starts over
func (a *Agent) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.messages = nil
}
