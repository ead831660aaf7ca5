package agent

import (
	"context"
	"fmt"

	"github.com/harun/dragen/internal/observability"
	"github.com/harun/dragen/internal/tracing"
	"github.com/harun/dragen/pkg/orchestrator"
	"go.opentelemetry.io/otel/attribute"
)

// Result is the outcome of one Map task
type Result[T any] struct {
	Value T
	Err   error
}

// Map runs every task on its own fork of a concurrently. Results keep the
// order of tasks and one failing task does not affect the others.
func Map[T any](ctx context.Context, a *Agent, tasks []string) []Result[T] {
	results := make([]Result[T], len(tasks))
	if len(tasks) == 0 {
		return results
	}

	ctx, span := tracing.StartSpan(ctx, tracing.TracerName, "agent.map",
		attribute.String("agent_id", a.id),
		attribute.Int("tasks", len(tasks)))
	defer span.End()

	executor := orchestrator.NewParallelExecutor(
		orchestrator.WithLimit(a.mapConcurrency),
		orchestrator.WithLogger(orchestrator.NewZerologLogger(a.logger)),
	)

	errs, err := executor.Execute(ctx, len(tasks), func(ctx context.Context, i int) error {
		fork := a.Fork()
		defer func() {
			if cerr := fork.Close(); cerr != nil {
				a.logger.Warn().Err(cerr).Str("agent_id", fork.id).Msg("Failed to close forked sandbox")
			}
		}()

		value, err := Run[T](tracing.PropagateToFork(ctx, fork.id), fork, tasks[i])
		observability.RecordMapTask(err == nil)
		results[i] = Result[T]{Value: value, Err: err}
		return err
	})
	if err != nil {
		a.logger.Error().Err(err).Msg("Map stopped early")
	}

	for i, taskErr := range errs {
		if results[i].Err == nil && taskErr != nil {
			results[i].Err = fmt.Errorf("task %d did not run: %w", i, taskErr)
		}
	}
	return results
}
