// Package setup builds a ready-to-run agent from a config file: logger,
// tracing, audit log, metrics endpoint, LLM provider and Python sandbox.
package setup

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/harun/dragen/internal/config"
	"github.com/harun/dragen/internal/logger"
	"github.com/harun/dragen/internal/observability"
	"github.com/harun/dragen/internal/tracing"
	"github.com/harun/dragen/pkg/agent"
	"github.com/harun/dragen/pkg/sandbox"
)

// Runtime owns an agent and the process-level services behind it
type Runtime struct {
	Config   *config.Config
	Logger   *logger.Logger
	Provider agent.LLMProvider
	Sandbox  sandbox.Interpreter
	Agent    *agent.Agent

	metricsServer   *http.Server
	metricsListener net.Listener
	tracingEnabled  bool
}

// Option customizes how the runtime is assembled
type Option func(*options)

type options struct {
	provider    agent.LLMProvider
	interpreter sandbox.Interpreter
}

// WithProvider uses provider instead of building one from the config
func WithProvider(provider agent.LLMProvider) Option {
	return func(o *options) {
		o.provider = provider
	}
}

// WithInterpreter uses interp instead of a PythonSandbox built from the config
func WithInterpreter(interp sandbox.Interpreter) Option {
	return func(o *options) {
		o.interpreter = interp
	}
}

// Load reads the config at path and builds a runtime from it
func Load(ctx context.Context, path string, opts ...Option) (*Runtime, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return New(ctx, cfg, opts...)
}

// New builds a runtime from cfg. On error everything already started is
// shut down again.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (rt *Runtime, err error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if err := validate(cfg, o); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	rt = &Runtime{
		Config: cfg,
		Logger: log,
	}
	defer func() {
		if err != nil {
			_ = rt.Close(context.Background())
		}
	}()

	observability.EnsureRegistered()

	if cfg.Tracing.Enabled {
		err := tracing.Init(tracing.Options{
			ServiceName: cfg.Tracing.ServiceName,
			SampleRatio: cfg.Tracing.SampleRatio,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize tracing, continuing without distributed tracing")
		} else {
			rt.tracingEnabled = true
			log.Info().Str("service", cfg.Tracing.ServiceName).Msg("Tracing initialized")
		}
	}

	if cfg.Audit.Path != "" {
		if err := observability.InitAuditLogger(cfg.Audit.Path); err != nil {
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
	}

	if cfg.Metrics.Enabled {
		if err := rt.serveMetrics(cfg.Metrics.Addr); err != nil {
			return nil, err
		}
		log.Info().Str("addr", rt.MetricsAddr()).Msg("Metrics endpoint listening")
	}

	rt.Provider = o.provider
	if rt.Provider == nil {
		factory := &agent.ProviderFactory{}
		rt.Provider, err = factory.NewProvider(ctx, cfg.Provider)
		if err != nil {
			return nil, fmt.Errorf("failed to create provider: %w", err)
		}
	}

	rt.Sandbox = o.interpreter
	if rt.Sandbox == nil {
		rt.Sandbox, err = sandbox.NewPythonSandbox(cfg.Sandbox)
		if err != nil {
			return nil, fmt.Errorf("failed to create sandbox: %w", err)
		}
	}

	agentOpts := []agent.Option{
		agent.WithConfig(cfg.Agent),
		agent.WithLogger(log.Zerolog()),
		agent.WithMapConcurrency(cfg.Map.Concurrency),
	}
	if cfg.Verbose {
		agentOpts = append(agentOpts, agent.WithCallbacks(agent.Verbose(log.Zerolog())))
	}

	rt.Agent, err = agent.New(rt.Provider, rt.Sandbox, agentOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}

	observability.RecordConfigAudit(ctx, "config_loaded", "setup", map[string]interface{}{
		"provider":       rt.Provider.Provider(),
		"model":          cfg.Agent.Model,
		"max_iterations": cfg.Agent.MaxIterations,
		"runtime":        string(cfg.Sandbox.Runtime),
	})

	log.Info().
		Str("agent_id", rt.Agent.ID()).
		Str("provider", rt.Provider.Provider()).
		Str("model", cfg.Agent.Model).
		Msg("Agent ready")

	return rt, nil
}

// validate checks cfg. An injected provider brings its own credentials, so
// the API key is not required then.
func validate(cfg *config.Config, o options) error {
	check := *cfg
	if o.provider != nil && check.Provider.APIKey == "" {
		check.Provider.APIKey = "unused"
	}
	return check.Validate()
}

func (r *Runtime) serveMetrics(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen for metrics: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.MetricsHandler())

	r.metricsListener = listener
	r.metricsServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := r.metricsServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.Logger.Error().Err(err).Msg("Metrics server stopped")
		}
	}()

	return nil
}

// MetricsAddr returns the address the metrics endpoint listens on, or "" when disabled
func (r *Runtime) MetricsAddr() string {
	if r.metricsListener == nil {
		return ""
	}
	return r.metricsListener.Addr().String()
}

// Close shuts down the agent, metrics endpoint, tracing, audit log and logger
func (r *Runtime) Close(ctx context.Context) error {
	var errs []error

	if r.Agent != nil {
		errs = append(errs, r.Agent.Close())
	} else if r.Sandbox != nil {
		errs = append(errs, r.Sandbox.Close())
	}

	if r.metricsServer != nil {
		errs = append(errs, r.metricsServer.Shutdown(ctx))
	}

	if r.tracingEnabled {
		errs = append(errs, tracing.ShutdownOpenTelemetry(ctx))
	}

	if r.Config != nil && r.Config.Audit.Path != "" {
		errs = append(errs, observability.GetAuditLogger().Close())
	}

	if r.Logger != nil {
		errs = append(errs, r.Logger.Close())
	}

	return errors.Join(errs...)
}
