package sandbox

import (
	"bufio"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/harun/dragen/internal/observability"
	"github.com/rs/zerolog/log"
)

//go:embed driver.py
var driverScript string

var _ Interpreter = (*PythonSandbox)(nil)

const (
	maxProtocolLine = 16 * 1024 * 1024
	stderrTailSize  = 4096
	ackTimeout      = 10 * time.Second
)

// PythonSandbox runs code in a long-lived Python process. Globals persist
// between executions. The process is started lazily and restarted, with
// variables and tools replayed, if it dies or times out.
type PythonSandbox struct {
	config   Config
	tools    *ToolRegistry
	vars     map[string]json.RawMessage
	varOrder []string

	proc   *pythonProcess
	closed bool
	mu     sync.Mutex
}

// NewPythonSandbox creates an interpreter for cfg
func NewPythonSandbox(cfg Config) (*PythonSandbox, error) {
	if cfg.Runtime == "" {
		cfg.Runtime = RuntimeHost
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &PythonSandbox{
		config: cfg,
		tools:  NewToolRegistry(),
		vars:   make(map[string]json.RawMessage),
	}, nil
}

// Config returns the sandbox configuration
func (p *PythonSandbox) Config() Config {
	return p.config
}

// Execute runs code in the interpreter
func (p *PythonSandbox) Execute(ctx context.Context, code string) (Execution, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return Execution{}, ErrInterpreterClosed
	}

	proc, err := p.ensureProcess()
	if err != nil {
		return Execution{}, err
	}

	start := time.Now()
	if err := proc.send(protocolRequest{Op: "exec", Code: code}); err != nil {
		p.discardProcess()
		return Execution{}, p.exitError(proc, err)
	}

	var timeout <-chan time.Time
	if limit := p.config.ResourceLimits.Timeout; limit > 0 {
		timer := time.NewTimer(limit)
		defer timer.Stop()
		timeout = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			p.discardProcess()
			return Execution{}, ctx.Err()

		case <-timeout:
			log.Warn().Dur("timeout", p.config.ResourceLimits.Timeout).Msg("Code execution timed out, restarting interpreter")
			p.discardProcess()
			return Execution{Duration: time.Since(start)}, ErrExecutionTimeout

		case msg, ok := <-proc.messages:
			if !ok {
				p.discardProcess()
				return Execution{Duration: time.Since(start)}, p.exitError(proc, nil)
			}

			switch msg.Type {
			case "tool_call":
				reply := p.callTool(ctx, msg.Name, msg.Args)
				if err := proc.send(reply); err != nil {
					p.discardProcess()
					return Execution{Duration: time.Since(start)}, p.exitError(proc, err)
				}

			case "result":
				execution := Execution{
					Output:   msg.Output,
					Duration: time.Since(start),
				}
				if msg.Result != nil {
					execution.Result = *msg.Result
					execution.HasResult = true
				}
				log.Debug().
					Int("output_lines", len(execution.Output)).
					Bool("has_result", execution.HasResult).
					Dur("duration", execution.Duration).
					Msg("Code executed in sandbox")
				if msg.Error != nil {
					return execution, &CodeError{Message: *msg.Error}
				}
				return execution, nil

			default:
				log.Warn().Str("type", msg.Type).Msg("Ignoring unexpected interpreter message")
			}
		}
	}
}

// RegisterTool makes a tool callable from code
func (p *PythonSandbox) RegisterTool(info ToolInfo, handler Handler) error {
	if err := p.tools.Register(info, handler); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.proc == nil {
		return nil
	}
	return p.request(protocolRequest{Op: "tool", Name: info.Name, Params: info.ArgNames()})
}

// SetVariable binds a JSON-compatible value in the interpreter's globals
func (p *PythonSandbox) SetVariable(name string, value interface{}) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("invalid variable name %q", name)
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to serialize variable %s: %w", name, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrInterpreterClosed
	}
	if _, exists := p.vars[name]; !exists {
		p.varOrder = append(p.varOrder, name)
	}
	p.vars[name] = data

	if p.proc == nil {
		return nil
	}
	return p.request(protocolRequest{Op: "set", Name: name, Value: data})
}

// Tools lists registered tools in registration order
func (p *PythonSandbox) Tools() []ToolInfo {
	return p.tools.List()
}

// Describe renders documentation for every registered tool
func (p *PythonSandbox) Describe() string {
	return Describe(p.tools.List())
}

// Fork returns an interpreter with the same configuration, tools and
// variables. The fork starts its own process on first use.
func (p *PythonSandbox) Fork() Interpreter {
	p.mu.Lock()
	defer p.mu.Unlock()

	fork := &PythonSandbox{
		config:   p.config,
		tools:    p.tools.Clone(),
		vars:     make(map[string]json.RawMessage, len(p.vars)),
		varOrder: append([]string(nil), p.varOrder...),
	}
	for name, value := range p.vars {
		fork.vars[name] = value
	}
	return fork
}

// Close stops the interpreter process
func (p *PythonSandbox) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	p.discardProcess()
	return nil
}

func (p *PythonSandbox) callTool(ctx context.Context, name string, args []interface{}) protocolRequest {
	result, err := p.tools.Call(ctx, name, args)
	if err != nil {
		return protocolRequest{Op: "tool_result", Error: stringPtr(err.Error())}
	}

	data, err := json.Marshal(result)
	if err != nil {
		return protocolRequest{Op: "tool_result", Error: stringPtr(fmt.Sprintf("%s returned a value that cannot be serialized: %v", name, err))}
	}
	return protocolRequest{Op: "tool_result", Value: data}
}

// ensureProcess starts the interpreter if needed and replays tools and
// variables into it. Callers hold p.mu.
func (p *PythonSandbox) ensureProcess() (*pythonProcess, error) {
	if p.proc != nil {
		return p.proc, nil
	}

	var (
		cmd *exec.Cmd
		err error
	)
	switch p.config.Runtime {
	case RuntimeDocker:
		cmd, err = dockerCommand(p.config, driverScript)
	default:
		cmd, err = hostCommand(p.config, driverScript)
	}
	if err != nil {
		if errors.Is(err, ErrFilesystemAccessDenied) {
			observability.RecordSecurityAudit(context.Background(), "interpreter_start", "sandbox", "denied", map[string]interface{}{
				"working_dir": p.config.WorkingDir,
			})
		}
		return nil, err
	}

	proc, err := startProcess(cmd)
	if err != nil {
		return nil, err
	}
	p.proc = proc

	log.Debug().
		Str("runtime", string(p.config.Runtime)).
		Int("tools", len(p.tools.List())).
		Int("variables", len(p.varOrder)).
		Msg("Interpreter process started")

	for _, tool := range p.tools.List() {
		if err := p.request(protocolRequest{Op: "tool", Name: tool.Name, Params: tool.ArgNames()}); err != nil {
			return nil, err
		}
	}
	for _, name := range p.varOrder {
		if err := p.request(protocolRequest{Op: "set", Name: name, Value: p.vars[name]}); err != nil {
			return nil, err
		}
	}
	return proc, nil
}

// request sends a definition to the running process and waits for its ack.
// Callers hold p.mu.
func (p *PythonSandbox) request(req protocolRequest) error {
	proc := p.proc
	if err := proc.send(req); err != nil {
		p.discardProcess()
		return p.exitError(proc, err)
	}

	select {
	case msg, ok := <-proc.messages:
		if !ok {
			p.discardProcess()
			return p.exitError(proc, nil)
		}
		if msg.Type != "ack" {
			return fmt.Errorf("unexpected interpreter message %q", msg.Type)
		}
		if msg.Error != nil {
			return errors.New(*msg.Error)
		}
		return nil
	case <-time.After(ackTimeout):
		p.discardProcess()
		return fmt.Errorf("%w: no acknowledgement for %s", ErrExecutionTimeout, req.Op)
	}
}

func (p *PythonSandbox) discardProcess() {
	if p.proc == nil {
		return
	}
	p.proc.kill()
	p.proc = nil
}

func (p *PythonSandbox) exitError(proc *pythonProcess, cause error) error {
	tail := strings.TrimSpace(proc.stderr.String())
	switch {
	case tail != "" && cause != nil:
		return fmt.Errorf("%w: %v: %s", ErrInterpreterExited, cause, tail)
	case tail != "":
		return fmt.Errorf("%w: %s", ErrInterpreterExited, tail)
	case cause != nil:
		return fmt.Errorf("%w: %v", ErrInterpreterExited, cause)
	default:
		return ErrInterpreterExited
	}
}

type protocolRequest struct {
	Op     string          `json:"op"`
	Code   string          `json:"code,omitempty"`
	Name   string          `json:"name,omitempty"`
	Params []string        `json:"params,omitempty"`
	Value  json.RawMessage `json:"value,omitempty"`
	Error  *string         `json:"error,omitempty"`
}

type protocolMessage struct {
	Type   string        `json:"type"`
	Name   string        `json:"name,omitempty"`
	Args   []interface{} `json:"args,omitempty"`
	Output []string      `json:"output,omitempty"`
	Result *string       `json:"result,omitempty"`
	Error  *string       `json:"error,omitempty"`
}

type pythonProcess struct {
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	messages chan protocolMessage
	stderr   *tailBuffer
}

func startProcess(cmd *exec.Cmd) (*pythonProcess, error) {
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open interpreter stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open interpreter stdout: %w", err)
	}
	stderr := &tailBuffer{limit: stderrTailSize}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start interpreter: %w", err)
	}

	proc := &pythonProcess{
		cmd:      cmd,
		stdin:    stdin,
		messages: make(chan protocolMessage),
		stderr:   stderr,
	}
	go proc.readLoop(stdout)
	return proc, nil
}

func (pp *pythonProcess) readLoop(stdout io.Reader) {
	defer close(pp.messages)

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), maxProtocolLine)
	for scanner.Scan() {
		var msg protocolMessage
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			log.Warn().Err(err).Msg("Discarding malformed interpreter message")
			continue
		}
		pp.messages <- msg
	}
	// Reap the process once its stdout closes
	_ = pp.cmd.Wait()
}

func (pp *pythonProcess) send(req protocolRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	_, err = pp.stdin.Write(append(data, '\n'))
	return err
}

func (pp *pythonProcess) kill() {
	_ = pp.stdin.Close()
	if pp.cmd.Process != nil {
		_ = pp.cmd.Process.Kill()
	}
	// Drain so the reader goroutine can finish
	go func() {
		for range pp.messages {
		}
	}()
}

// tailBuffer keeps the last limit bytes written to it
type tailBuffer struct {
	buf   []byte
	limit int
	mu    sync.Mutex
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}

func stringPtr(s string) *string {
	return &s
}
