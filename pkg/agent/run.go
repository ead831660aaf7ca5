package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/harun/dragen/internal/observability"
	"github.com/harun/dragen/internal/tracing"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

// Run asks the agent to solve task and decodes the final answer into T.
// The conversation log is reset at the start of every run.
func Run[T any](ctx context.Context, a *Agent, task string) (T, error) {
	var zero T
	value, err := a.run(ctx, "run", task, decodeAs[T]())
	if err != nil {
		return zero, err
	}
	result, _ := value.(T)
	return result, nil
}

// RunJSON is Run for callers that want the final answer as raw JSON
func (a *Agent) RunJSON(ctx context.Context, task string) (json.RawMessage, error) {
	value, err := a.run(ctx, "run", task, decodeRaw)
	if err != nil {
		return nil, err
	}
	return value.(json.RawMessage), nil
}

// attemptFailure describes a final answer the model has to correct
type attemptFailure struct {
	reason   string
	headline string
	detail   string
	payload  string
	message  string
	cause    error
}

func (a *Agent) run(ctx context.Context, mode, task string, decode decoder) (result interface{}, err error) {
	ctx = tracing.NewRunContext(ctx, a.id)
	ctx, span := tracing.StartSpan(ctx, tracing.TracerName, "agent.run",
		attribute.String("agent_id", a.id),
		attribute.String("model", a.config.Model),
		attribute.String("provider", a.provider.Provider()))
	logger := tracing.LoggerFromContext(ctx, a.logger)

	start := time.Now()
	iterations := 0
	defer func() {
		outcome := runOutcome(err)
		observability.RecordRun(mode, outcome, time.Since(start), iterations)
		observability.RecordRunAudit(ctx, a.id, mode, outcome, iterations)
		tracing.EndSpan(span, err)
		if err != nil {
			logger.Error().Err(err).Int("iterations", iterations).Msg("Agent run failed")
		} else {
			logger.Info().Int("iterations", iterations).Dur("duration", time.Since(start)).Msg("Agent run completed")
		}
	}()

	if err := a.ensureFinishTool(); err != nil {
		return nil, sandboxError(err)
	}

	a.slot.clear()
	a.mu.Lock()
	a.messages = []Message{
		{Role: RoleSystem, Content: a.systemPrompt()},
		{Role: RoleUser, Content: a.taskWithContext(task)},
	}
	a.mu.Unlock()

	ctx = withRunState(ctx, &runState{slot: a.slot, callbacks: a.callbacks})
	parser := NewParser(a.config.ThinkingTag)
	maxIterations := a.config.MaxIterations

	logger.Info().Int("max_iterations", maxIterations).Msg("Agent run started")

	for {
		iterations++
		if iterations > maxIterations {
			a.callbacks.Emit(ErrorEvent{Message: fmt.Sprintf("Max iterations (%d) reached", maxIterations)})
			return nil, maxIterationsError(maxIterations)
		}
		a.callbacks.Emit(IterationStartEvent{Iteration: iterations, MaxIterations: maxIterations})
		iterLogger := logger.With().Int("iteration", iterations).Logger()

		content, err := a.complete(ctx, a.snapshotMessages())
		if err != nil {
			return nil, err
		}

		parsed := parser.Parse(content)
		if parsed.HasThinking {
			a.callbacks.Emit(ThinkingEvent{Content: parsed.Thinking})
		}
		a.appendMessage(RoleAssistant, content)

		switch parsed.Kind {
		case ResponseFinish:
			iterLogger.Debug().Msg("Finish block received")
			value, failure := a.resolveFinishBlock(parsed.Body, decode)
			if failure == nil {
				a.storeResult(iterLogger, value)
				return value, nil
			}
			if err := a.retry(iterLogger, *failure, iterations, maxIterations); err != nil {
				return nil, err
			}

		case ResponseCode:
			a.callbacks.Emit(CodeGeneratedEvent{Code: parsed.Body})
			output, err := a.execute(ctx, parsed.Body)
			if err != nil {
				return nil, err
			}
			a.callbacks.Emit(CodeExecutedEvent{Code: parsed.Body, Output: output, Success: !executionFailed(output)})

			if !finishCalled(output, a.slot) {
				a.appendMessage(RoleUser, executionFeedback(output))
				continue
			}

			iterLogger.Debug().Msg("finish() called")
			value, failure, err := a.resolveFinishCall(decode)
			if err != nil {
				a.callbacks.Emit(ErrorEvent{Message: err.Error()})
				return nil, err
			}
			if failure == nil {
				a.storeResult(iterLogger, value)
				return value, nil
			}
			if err := a.retry(iterLogger, *failure, iterations, maxIterations); err != nil {
				return nil, err
			}

		default:
			iterLogger.Debug().Msg("Plain response, decoding as final answer")
			value, err := resolvePlain(parsed.Body, decode)
			if err != nil {
				return nil, err
			}
			a.storeResult(iterLogger, value)
			return value, nil
		}
	}
}

// complete sends the conversation to the provider and returns the reply text
func (a *Agent) complete(ctx context.Context, messages []Message) (string, error) {
	a.callbacks.Emit(LLMRequestEvent{MessageCount: len(messages)})

	providerName := a.provider.Provider()
	ctx, span := tracing.StartSpan(ctx, tracing.TracerName, "agent.llm_call",
		attribute.String("provider", providerName),
		attribute.String("model", a.config.Model),
		attribute.Int("messages", len(messages)))

	start := time.Now()
	resp, err := a.provider.Call(ctx, LLMRequest{
		Model:       a.config.Model,
		Messages:    messages,
		Temperature: a.config.Temperature,
		MaxTokens:   a.config.MaxTokens,
	})
	if err == nil && resp == nil {
		err = errors.New("provider returned no response")
	}
	observability.RecordLLMCall(providerName, time.Since(start), err == nil)
	if err != nil {
		tracing.EndSpan(span, err)
		return "", llmError(err)
	}

	tokens := 0
	if resp.Usage != nil {
		observability.RecordTokens(providerName, resp.Usage.InputTokens, resp.Usage.OutputTokens)
		tokens = resp.Usage.Total()
		span.SetAttributes(attribute.Int("tokens", tokens))
	}
	tracing.EndSpan(span, nil)

	a.callbacks.Emit(LLMResponseEvent{Content: resp.Content, TokensUsed: tokens})
	return resp.Content, nil
}

// resolveFinishBlock validates and decodes the content of a <finish> block
func (a *Agent) resolveFinishBlock(body string, decode decoder) (interface{}, *attemptFailure) {
	blockFailure := func(err error) *attemptFailure {
		return &attemptFailure{
			reason:   "finish_block",
			headline: headlineFinishBlock,
			detail:   err.Error(),
			payload:  body,
			message:  fmt.Sprintf("Invalid JSON in <finish> block: %v", err),
			cause:    err,
		}
	}

	var generic interface{}
	if err := json.Unmarshal([]byte(body), &generic); err != nil {
		return nil, blockFailure(err)
	}
	if failure := a.checkSchema(generic); failure != nil {
		return nil, failure
	}

	value, err := decode([]byte(body))
	if err != nil {
		return nil, blockFailure(err)
	}
	a.callbacks.Emit(FinishEvent{Value: generic})
	return value, nil
}

// resolveFinishCall validates and decodes the value captured by finish().
// The error return is fatal; attempt failures can be corrected by the model.
func (a *Agent) resolveFinishCall(decode decoder) (interface{}, *attemptFailure, error) {
	captured, ok := a.slot.load()
	if !ok {
		return nil, nil, deserializationError("No finish value captured", nil)
	}

	callFailure := func(err error, payload string) *attemptFailure {
		return &attemptFailure{
			reason:   "finish_call",
			headline: headlineFinishCall,
			detail:   err.Error(),
			payload:  payload,
			message:  fmt.Sprintf("Invalid finish() output: %v", err),
			cause:    err,
		}
	}

	data, err := json.Marshal(captured)
	if err != nil {
		return nil, callFailure(err, plainText(captured)), nil
	}

	var generic interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, callFailure(err, string(data)), nil
	}
	if failure := a.checkSchema(generic); failure != nil {
		return nil, failure, nil
	}

	a.callbacks.Emit(FinishEvent{Value: captured})

	value, err := decode(data)
	if err != nil {
		return nil, callFailure(err, string(data)), nil
	}
	return value, nil, nil
}

func (a *Agent) checkSchema(candidate interface{}) *attemptFailure {
	if a.schema == nil {
		return nil
	}
	err := a.schema.Check(candidate)
	if err == nil {
		return nil
	}
	return &attemptFailure{
		reason:   "schema",
		headline: headlineSchema,
		detail:   err.Error(),
		message:  err.Error(),
		cause:    err,
	}
}

// resolvePlain decodes a reply with neither a finish nor a code block,
// first as JSON and then as a JSON string
func resolvePlain(text string, decode decoder) (interface{}, error) {
	if value, err := decode([]byte(text)); err == nil {
		return value, nil
	}

	quoted, err := json.Marshal(text)
	if err != nil {
		return nil, deserializationError(err.Error(), err)
	}
	value, err := decode(quoted)
	if err != nil {
		return nil, deserializationError(err.Error(), err)
	}
	return value, nil
}

// retry reports a rejected final answer and asks the model for a correction.
// It returns an error once the iteration budget leaves no room for another
// attempt.
func (a *Agent) retry(logger zerolog.Logger, failure attemptFailure, iteration, maxIterations int) error {
	a.callbacks.Emit(ErrorEvent{Message: failure.message})
	if iteration >= maxIterations {
		return deserializationError(failure.message, failure.cause)
	}

	a.slot.clear()
	a.appendMessage(RoleUser, retryFeedback(failure.headline, failure.detail, failure.payload))
	observability.RecordFinishRetry(failure.reason)

	logger.Warn().Str("reason", failure.reason).Msg("Final answer rejected, asking for a correction")
	return nil
}

func (a *Agent) storeResult(logger zerolog.Logger, value interface{}) {
	if err := a.saveResult(value); err != nil {
		logger.Warn().Err(err).Msg("Failed to write result to context store")
	}
}

func runOutcome(err error) string {
	if err == nil {
		return "success"
	}
	var agentErr *Error
	if errors.As(err, &agentErr) {
		return string(agentErr.Kind)
	}
	return "error"
}
