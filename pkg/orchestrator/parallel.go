package orchestrator

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// Task is one unit of a fan-out. index identifies the task's result slot.
type Task func(ctx context.Context, index int) error

// ParallelExecutor runs indexed tasks concurrently with an optional limit
type ParallelExecutor struct {
	limit  int
	onFail OnFailStrategy
	logger Logger
}

// ExecutorOption configures a ParallelExecutor
type ExecutorOption func(*ParallelExecutor)

// WithLimit caps the number of tasks running at once. Zero or less means unbounded.
func WithLimit(limit int) ExecutorOption {
	return func(p *ParallelExecutor) {
		p.limit = limit
	}
}

// WithOnFail sets the failure strategy
func WithOnFail(strategy OnFailStrategy) ExecutorOption {
	return func(p *ParallelExecutor) {
		p.onFail = strategy
	}
}

// WithLogger sets the logger for the executor
func WithLogger(logger Logger) ExecutorOption {
	return func(p *ParallelExecutor) {
		p.logger = logger
	}
}

// NewParallelExecutor creates a new ParallelExecutor instance. Failures are
// isolated unless WithOnFail(OnFailAbort) is given.
func NewParallelExecutor(opts ...ExecutorOption) *ParallelExecutor {
	p := &ParallelExecutor{onFail: OnFailContinue}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Execute runs task for every index in [0, n) and waits for all of them.
// The returned slice holds each task's error at its index. The second return
// is non-nil only when the abort strategy stopped the fan-out.
func (p *ParallelExecutor) Execute(ctx context.Context, n int, task Task) ([]error, error) {
	if err := p.onFail.Validate(); err != nil {
		return nil, err
	}
	if n <= 0 {
		return []error{}, nil
	}

	if p.logger != nil {
		p.logger.Info("Starting parallel execution",
			"num_tasks", n,
			"limit", p.limit,
			"on_fail", string(p.onFail))
	}

	startTime := time.Now()
	errs := make([]error, n)

	g, gctx := errgroup.WithContext(ctx)
	if p.limit > 0 {
		g.SetLimit(p.limit)
	}

	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				errs[i] = err
				return nil
			}

			err := task(gctx, i)
			errs[i] = err
			if err == nil {
				return nil
			}

			if p.logger != nil {
				p.logger.Error("Parallel task failed", err, "index", i)
			}
			if p.onFail == OnFailAbort {
				return fmt.Errorf("task %d: %w", i, err)
			}
			return nil
		})
	}

	waitErr := g.Wait()

	if p.logger != nil {
		failed := 0
		for _, err := range errs {
			if err != nil {
				failed++
			}
		}
		p.logger.Info("Parallel execution completed",
			"num_tasks", n,
			"failed", failed,
			"duration", time.Since(startTime).String())
	}

	if waitErr != nil {
		return errs, fmt.Errorf("parallel execution aborted: %w", waitErr)
	}
	return errs, nil
}
