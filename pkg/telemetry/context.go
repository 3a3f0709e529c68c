package telemetry

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry bundles logging, tracing and metrics for one process.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Config  *Config
}

// telemetryContextKey is the context key for telemetry instances.
type telemetryContextKey struct{}

// NewTelemetry creates a new telemetry instance from configuration.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.ResourceAttributes)
	if err != nil {
		return nil, err
	}

	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		Logger:  logger,
		Tracer:  tracer,
		Metrics: metrics,
		Config:  cfg,
	}, nil
}

// Noop returns telemetry that records nothing.
func Noop() *Telemetry {
	cfg := DisabledConfig()
	tracer, _ := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.ResourceAttributes)
	metrics, _ := NewMetrics(cfg.Metrics)
	return &Telemetry{
		Logger:  NopLogger(),
		Tracer:  tracer,
		Metrics: metrics,
		Config:  cfg,
	}
}

// WithContext adds the telemetry instance to the context.
func (t *Telemetry) WithContext(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, telemetryContextKey{}, t)
	return t.Logger.WithContext(ctx)
}

// FromTelemetryContext retrieves the telemetry instance from the context.
// If no telemetry is found, it returns nil.
func FromTelemetryContext(ctx context.Context) *Telemetry {
	if t, ok := ctx.Value(telemetryContextKey{}).(*Telemetry); ok {
		return t
	}
	return nil
}

// Shutdown flushes spans and writes the metrics textfile. Both are
// attempted even when one fails.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return errors.Join(
		t.Tracer.Shutdown(ctx),
		t.Metrics.WriteTextfile(),
	)
}

// Flush forces all pending spans to be exported.
func (t *Telemetry) Flush(ctx context.Context) error {
	return t.Tracer.ForceFlush(ctx)
}

// StartMetricsServer serves metrics until ctx is done, when a listen
// address is configured.
func (t *Telemetry) StartMetricsServer(ctx context.Context) error {
	return t.Metrics.StartMetricsServer(ctx)
}

// InstrumentedContext carries the span, logger and timer of one operation.
type InstrumentedContext struct {
	Ctx    context.Context
	Span   trace.Span
	Logger *Logger
	Timer  *Timer
}

// StartOperation begins an instrumented operation with logging, tracing and
// timing. Without telemetry in ctx only the timer and context logger are set.
func StartOperation(ctx context.Context, operation string, attrs ...attribute.KeyValue) *InstrumentedContext {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return &InstrumentedContext{
			Ctx:    ctx,
			Logger: FromContext(ctx),
			Timer:  NewTimer(),
		}
	}

	spanCtx, span := tel.Tracer.StartSpan(ctx, operation, attrs...)
	logger := FromContext(ctx).WithField("operation", operation)
	if span.SpanContext().IsValid() {
		logger = logger.WithFields(map[string]interface{}{
			"trace_id": span.SpanContext().TraceID().String(),
			"span_id":  span.SpanContext().SpanID().String(),
		})
	}

	return &InstrumentedContext{
		Ctx:    logger.WithContext(spanCtx),
		Span:   span,
		Logger: logger,
		Timer:  NewTimer(),
	}
}

// End finishes the instrumented operation, recording success or failure.
func (ic *InstrumentedContext) End(err error) {
	if ic.Span == nil {
		return
	}
	if err != nil {
		RecordError(ic.Span, err)
	} else {
		RecordSuccess(ic.Span)
	}
	ic.Span.End()
}

// Run is the instrumentation of one command run.
type Run struct {
	Ctx     context.Context
	Command string
	RunID   string
	span    trace.Span
	timer   *Timer
	tel     *Telemetry
}

// StartRun opens the root span of a command run and puts a logger carrying
// the run id in the returned context.
func (t *Telemetry) StartRun(ctx context.Context, command, runID string) *Run {
	ctx = t.WithContext(ctx)
	spanCtx, span := t.Tracer.StartRunSpan(ctx, command, runID)
	logger := t.Logger.WithRunID(runID).WithCommand(command)
	return &Run{
		Ctx:     logger.WithContext(spanCtx),
		Command: command,
		RunID:   runID,
		span:    span,
		timer:   NewTimer(),
		tel:     t,
	}
}

// End closes the run span and records the run outcome.
func (r *Run) End(err error) {
	status := "success"
	if err != nil {
		status = "failure"
		RecordError(r.span, err)
	} else {
		RecordSuccess(r.span)
	}
	r.span.End()
	r.tel.Metrics.RecordRun(r.Command, status, r.timer.Duration())
}

// RunStage runs fn inside a stage span, records its duration and logs the
// stage boundaries at debug level.
func (t *Telemetry) RunStage(ctx context.Context, stage string, fn func(ctx context.Context) error) error {
	spanCtx, span := t.Tracer.StartStageSpan(ctx, stage)
	defer span.End()

	logger := FromContext(ctx).WithStage(stage)
	logger.Debug("stage started")
	timer := NewTimer()

	err := fn(logger.WithContext(spanCtx))

	t.Metrics.RecordStage(stage, timer.Duration())
	if err != nil {
		RecordError(span, err)
		logger.WithError(err).Debug("stage failed")
		return err
	}
	RecordSuccess(span)
	logger.Debugf("stage finished in %s", timer.Duration())
	return nil
}
