package tracing

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation name used for agent spans
const TracerName = "dragen.agent"

// Options configures the process-wide tracer provider
type Options struct {
	ServiceName string
	// SampleRatio is the fraction of root runs traced; 0 means all of them
	SampleRatio float64
	// Exporter receives finished spans synchronously; nil keeps spans in-process only
	Exporter sdktrace.SpanExporter
}

var (
	providerMu sync.Mutex
	provider   *sdktrace.TracerProvider
)

// Init installs a global tracer provider built from opts. A second call is a
// no-op until ShutdownOpenTelemetry.
func Init(opts Options) error {
	providerMu.Lock()
	defer providerMu.Unlock()

	if provider != nil {
		return nil
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(semconv.ServiceName(opts.ServiceName)),
	)
	if err != nil {
		return err
	}

	ratio := opts.SampleRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 1
	}

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	}
	if opts.Exporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithSyncer(opts.Exporter))
	}

	provider = sdktrace.NewTracerProvider(tpOpts...)
	otel.SetTracerProvider(provider)
	return nil
}

// ShutdownOpenTelemetry flushes and removes the global tracer provider
func ShutdownOpenTelemetry(ctx context.Context) error {
	providerMu.Lock()
	tp := provider
	provider = nil
	providerMu.Unlock()

	if tp == nil {
		return nil
	}
	return tp.Shutdown(ctx)
}

// StartSpan starts a span on tracerName. The span's trace ID becomes the
// run's trace ID when ctx has none yet.
func StartSpan(ctx context.Context, tracerName, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, spanName, trace.WithAttributes(attrs...))

	if GetTraceID(ctx) == "" {
		if sc := span.SpanContext(); sc.IsValid() {
			ctx = WithTraceID(ctx, sc.TraceID().String())
		}
	}
	if runID := GetRunID(ctx); runID != "" {
		span.SetAttributes(attribute.String("run_id", runID))
	}

	return ctx, span
}

// EndSpan records err on span, if any, and ends it
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
