package observability

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/harun/dragen/internal/tracing"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Audit event types
const (
	AuditTypeRun      = "run"
	AuditTypeTool     = "tool"
	AuditTypeSecurity = "security"
	AuditTypeConfig   = "config"
)

// AuditEvent is one line of the audit log
type AuditEvent struct {
	Type     string                 `json:"event_type"`
	Time     time.Time              `json:"timestamp"`
	Actor    string                 `json:"actor,omitempty"`
	Action   string                 `json:"action"`
	Status   string                 `json:"status"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// AuditLogger appends audit events as JSON lines. Until a file is opened
// with InitAuditLogger every event is dropped.
type AuditLogger struct {
	mu     sync.Mutex
	logger zerolog.Logger
	file   *os.File
}

var (
	auditOnce sync.Once
	auditInst *AuditLogger
)

// GetAuditLogger returns the process-wide audit logger
func GetAuditLogger() *AuditLogger {
	auditOnce.Do(func() {
		auditInst = &AuditLogger{logger: zerolog.New(io.Discard)}
	})
	return auditInst
}

// InitAuditLogger points the audit logger at path, closing any previous file
func InitAuditLogger(path string) error {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	a := GetAuditLogger()
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.file != nil {
		_ = a.file.Close()
	}
	a.file = file
	a.logger = zerolog.New(file)
	return nil
}

// Record writes event, tagged with the run and trace carried by ctx. When
// ctx holds a recording span the event is also added to it.
func (a *AuditLogger) Record(ctx context.Context, event AuditEvent) {
	if event.Time.IsZero() {
		event.Time = time.Now()
	}

	traceID := tracing.GetTraceID(ctx)
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		traceID = span.SpanContext().TraceID().String()
		span.AddEvent("audit."+event.Action, trace.WithAttributes(
			attribute.String("audit.type", event.Type),
			attribute.String("audit.status", event.Status),
		))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	entry := a.logger.Log().
		Time("timestamp", event.Time).
		Str("event_type", event.Type).
		Str("action", event.Action).
		Str("status", event.Status)
	if event.Actor != "" {
		entry = entry.Str("actor", event.Actor)
	}
	if runID := tracing.GetRunID(ctx); runID != "" {
		entry = entry.Str("run_id", runID)
	}
	if traceID != "" {
		entry = entry.Str("trace_id", traceID)
	}
	if len(event.Metadata) > 0 {
		entry = entry.Interface("metadata", event.Metadata)
	}
	entry.Send()
}

// Close closes the audit file; later events are dropped
func (a *AuditLogger) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	a.logger = zerolog.New(io.Discard)
	return err
}

// RecordRunAudit records the end of an agent run
func RecordRunAudit(ctx context.Context, agentID, mode, outcome string, iterations int) {
	GetAuditLogger().Record(ctx, AuditEvent{
		Type:   AuditTypeRun,
		Actor:  agentID,
		Action: mode,
		Status: outcome,
		Metadata: map[string]interface{}{
			"iterations": iterations,
		},
	})
}

// RecordToolAudit records a tool call made from sandboxed code
func RecordToolAudit(ctx context.Context, toolName, actor, status string, metadata map[string]interface{}) {
	GetAuditLogger().Record(ctx, AuditEvent{
		Type:     AuditTypeTool,
		Actor:    actor,
		Action:   "execute:" + toolName,
		Status:   status,
		Metadata: metadata,
	})
}

func RecordSecurityAudit(ctx context.Context, action, actor, status string, metadata map[string]interface{}) {
	GetAuditLogger().Record(ctx, AuditEvent{
		Type:     AuditTypeSecurity,
		Actor:    actor,
		Action:   action,
		Status:   status,
		Metadata: metadata,
	})
}

func RecordConfigAudit(ctx context.Context, action, actor string, metadata map[string]interface{}) {
	GetAuditLogger().Record(ctx, AuditEvent{
		Type:     AuditTypeConfig,
		Actor:    actor,
		Action:   action,
		Status:   "success",
		Metadata: metadata,
	})
}
