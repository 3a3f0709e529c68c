package telemetry

import (
	"context"
	"fmt"
	"os"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Span attribute keys.
var (
	AttrRunID      = attribute.Key("pakit.run_id")
	AttrCommand    = attribute.Key("pakit.command")
	AttrStage      = attribute.Key("pakit.stage")
	AttrDocuments  = attribute.Key("pakit.documents")
	AttrControls   = attribute.Key("pakit.controls")
	AttrTemplates  = attribute.Key("pakit.templates")
	AttrIssues     = attribute.Key("pakit.issues")
	AttrErrorClass = attribute.Key("pakit.error.class")
)

// Tracer produces one root span per command run with a child span per
// pipeline stage.
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewTracer builds a tracer. When tracing is disabled spans are created but
// never sampled, so callers need no nil checks. attrs are added to the
// trace resource.
func NewTracer(cfg TracingConfig, serviceName, serviceVersion string, attrs map[string]string) (*Tracer, error) {
	if !cfg.Enabled {
		return newTracer(sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.NeverSample())), serviceName), nil
	}

	exporter, err := newExporter(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(newResource(serviceName, serviceVersion, attrs)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SamplingRate))),
	}
	if exporter != nil {
		opts = append(opts, sdktrace.WithBatcher(exporter, sdktrace.WithExportTimeout(cfg.ExportTimeout)))
	}

	provider := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(provider)
	return newTracer(provider, serviceName), nil
}

// newResource describes the service. Extra attributes never replace the
// service name or version.
func newResource(serviceName, serviceVersion string, attrs map[string]string) *resource.Resource {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		if k == string(semconv.ServiceNameKey) || k == string(semconv.ServiceVersionKey) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	kvs := []attribute.KeyValue{
		semconv.ServiceNameKey.String(serviceName),
		semconv.ServiceVersionKey.String(serviceVersion),
	}
	for _, k := range keys {
		kvs = append(kvs, attribute.String(k, attrs[k]))
	}
	return resource.NewWithAttributes(semconv.SchemaURL, kvs...)
}

func newTracer(provider *sdktrace.TracerProvider, name string) *Tracer {
	return &Tracer{provider: provider, tracer: provider.Tracer(name)}
}

// newExporter returns nil for the "none" exporter: spans are sampled and
// visible in-process but not exported.
func newExporter(cfg TracingConfig) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "none":
		return nil, nil
	case "stdout":
		// stdout carries command output; spans go to stderr.
		return stdouttrace.New(stdouttrace.WithWriter(os.Stderr), stdouttrace.WithPrettyPrint())
	case "otlp":
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("otlp exporter requires an endpoint")
		}
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(cfg.Endpoint),
			otlptracegrpc.WithDialOption(grpc.WithUserAgent("pakit")),
			otlptracegrpc.WithHeaders(cfg.Headers),
		}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithTLSCredentials(insecure.NewCredentials()))
		}
		return otlptracegrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported trace exporter: %s", cfg.Exporter)
	}
}

// StartSpan starts a span named after operation.
func (t *Tracer) StartSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, operation, trace.WithAttributes(attrs...))
}

// StartRunSpan starts the root span of one command run, "pakit.<command>".
func (t *Tracer) StartRunSpan(ctx context.Context, command, runID string) (context.Context, trace.Span) {
	return t.StartSpan(ctx, "pakit."+command, AttrRunID.String(runID), AttrCommand.String(command))
}

// StartStageSpan starts a pipeline stage span, "pipeline.<stage>".
func (t *Tracer) StartStageSpan(ctx context.Context, stage string) (context.Context, trace.Span) {
	return t.StartSpan(ctx, "pipeline."+stage, AttrStage.String(stage))
}

// Annotate sets attributes on the span active in ctx.
func Annotate(ctx context.Context, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).SetAttributes(attrs...)
}

// RecordError marks span as failed. A nil err is ignored.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func RecordSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// Shutdown exports pending spans and stops the provider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t == nil || t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

func (t *Tracer) ForceFlush(ctx context.Context) error {
	if t == nil || t.provider == nil {
		return nil
	}
	return t.provider.ForceFlush(ctx)
}
