package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dragen"

type moduleMetrics struct {
	runTotal      *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	runIterations prometheus.Histogram

	llmCallTotal    *prometheus.CounterVec
	llmCallDuration *prometheus.HistogramVec
	llmTokensTotal  *prometheus.CounterVec

	codeExecutionTotal    *prometheus.CounterVec
	codeExecutionDuration prometheus.Histogram
	finishRetriesTotal    *prometheus.CounterVec

	toolExecutionTotal    *prometheus.CounterVec
	toolExecutionDuration *prometheus.HistogramVec

	mapTasksTotal *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			runTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "run_total",
					Help:      "Total agent runs by mode and outcome.",
				},
				[]string{"mode", "outcome"},
			),
			runDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Name:      "run_duration_seconds",
					Help:      "Agent run duration in seconds by mode.",
					Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
				},
				[]string{"mode"},
			),
			runIterations: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Name:      "run_iterations",
					Help:      "Iterations used per agent run.",
					Buckets:   prometheus.LinearBuckets(1, 1, 15),
				},
			),
			llmCallTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "llm_call_total",
					Help:      "Total LLM calls by provider and status.",
				},
				[]string{"provider", "status"},
			),
			llmCallDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Name:      "llm_call_duration_seconds",
					Help:      "LLM call duration in seconds by provider.",
					Buckets:   prometheus.DefBuckets,
				},
				[]string{"provider"},
			),
			llmTokensTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "llm_tokens_total",
					Help:      "Total tokens by provider and direction.",
				},
				[]string{"provider", "direction"},
			),
			codeExecutionTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "code_execution_total",
					Help:      "Total sandbox code executions by status.",
				},
				[]string{"status"},
			),
			codeExecutionDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Name:      "code_execution_duration_seconds",
					Help:      "Sandbox code execution duration in seconds.",
					Buckets:   prometheus.DefBuckets,
				},
			),
			finishRetriesTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "finish_retries_total",
					Help:      "Total corrective retries by reason.",
				},
				[]string{"reason"},
			),
			toolExecutionTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "tool_execution_total",
					Help:      "Total tool executions by tool and status.",
				},
				[]string{"tool", "status"},
			),
			toolExecutionDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Name:      "tool_execution_duration_seconds",
					Help:      "Tool execution duration in seconds by tool.",
					Buckets:   prometheus.DefBuckets,
				},
				[]string{"tool"},
			),
			mapTasksTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "map_tasks_total",
					Help:      "Total parallel map tasks by status.",
				},
				[]string{"status"},
			),
		}

		prometheus.MustRegister(
			m.runTotal,
			m.runDuration,
			m.runIterations,
			m.llmCallTotal,
			m.llmCallDuration,
			m.llmTokensTotal,
			m.codeExecutionTotal,
			m.codeExecutionDuration,
			m.finishRetriesTotal,
			m.toolExecutionTotal,
			m.toolExecutionDuration,
			m.mapTasksTotal,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordRun records a finished run. Outcome is one of success,
// max_iterations, deserialization, llm, sandbox or error.
func RecordRun(mode, outcome string, duration time.Duration, iterations int) {
	m := getMetrics()
	m.runTotal.WithLabelValues(mode, outcome).Inc()
	m.runDuration.WithLabelValues(mode).Observe(duration.Seconds())
	m.runIterations.Observe(float64(iterations))
}

func RecordLLMCall(provider string, duration time.Duration, success bool) {
	m := getMetrics()
	m.llmCallTotal.WithLabelValues(provider, status(success)).Inc()
	m.llmCallDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

func RecordTokens(provider string, input, output int) {
	m := getMetrics()
	if input > 0 {
		m.llmTokensTotal.WithLabelValues(provider, "input").Add(float64(input))
	}
	if output > 0 {
		m.llmTokensTotal.WithLabelValues(provider, "output").Add(float64(output))
	}
}

func RecordCodeExecution(duration time.Duration, success bool) {
	m := getMetrics()
	m.codeExecutionTotal.WithLabelValues(status(success)).Inc()
	m.codeExecutionDuration.Observe(duration.Seconds())
}

// RecordFinishRetry counts a corrective message sent back to the model
func RecordFinishRetry(reason string) {
	getMetrics().finishRetriesTotal.WithLabelValues(reason).Inc()
}

func RecordToolExecution(tool string, duration time.Duration, success bool) {
	m := getMetrics()
	m.toolExecutionTotal.WithLabelValues(tool, status(success)).Inc()
	m.toolExecutionDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

func RecordMapTask(success bool) {
	getMetrics().mapTasksTotal.WithLabelValues(status(success)).Inc()
}
