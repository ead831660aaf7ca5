// Package agent runs CodeAct loops: the model writes Python, the sandbox
// executes it, and the output is fed back until the model returns a final
// answer through a <finish> block or the finish() tool.
//
// Invariants:
// - One run has at most one LLM call or sandbox execution in flight.
// - At most one finish value is live per run; a correction request clears it.
// - A run makes at most Config.MaxIterations LLM calls.
// - Map results keep task order; a failing task only fails its own slot.
//
// Usage:
//
//	a, _ := agent.New(provider, sb, agent.WithConfig(agent.DefaultConfig().WithMaxIterations(5)))
//	answer, err := agent.Run[Report](ctx, a, "summarise the logs")
//	_ = answer
//	_ = err
package agent
