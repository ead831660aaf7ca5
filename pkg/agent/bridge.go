package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harun/dragen/internal/observability"
	"github.com/harun/dragen/internal/tracing"
	"github.com/harun/dragen/pkg/sandbox"
	"go.opentelemetry.io/otel/attribute"
)

const noOutput = "Code executed successfully (no output)."

// execute runs code in the sandbox and renders the outcome as one text blob.
// Failures of the code are returned as "Error: ..." text; only a cancelled
// context or a closed interpreter is reported as an error. Lines printed
// before an exception are not part of the feedback, the model sees the
// error alone.
func (a *Agent) execute(ctx context.Context, code string) (string, error) {
	ctx, span := tracing.StartSpan(ctx, tracing.TracerName, "agent.execute",
		attribute.Int("code_bytes", len(code)))

	start := time.Now()
	execution, err := a.sandbox.Execute(ctx, code)
	observability.RecordCodeExecution(time.Since(start), err == nil)

	if err != nil {
		if ctx.Err() != nil || errors.Is(err, sandbox.ErrInterpreterClosed) {
			tracing.EndSpan(span, err)
			return "", sandboxError(err)
		}
		tracing.EndSpan(span, nil)
		return fmt.Sprintf("Error: %s", err.Error()), nil
	}

	tracing.EndSpan(span, nil)
	return renderExecution(execution), nil
}

func renderExecution(execution sandbox.Execution) string {
	parts := make([]string, 0, len(execution.Output)+1)
	parts = append(parts, execution.Output...)
	if execution.HasResult {
		parts = append(parts, "=> "+execution.Result)
	}
	if len(parts) == 0 {
		return noOutput
	}
	return strings.Join(parts, "\n")
}

func executionFeedback(output string) string {
	return fmt.Sprintf("Execution output:\n```\n%s\n```", output)
}

func executionFailed(output string) bool {
	return strings.HasPrefix(output, "Error:")
}
