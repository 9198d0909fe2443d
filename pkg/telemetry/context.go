package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry provides a unified telemetry interface combining logging, tracing and metrics.
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

	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	return &Telemetry{
		Logger:  logger,
		Tracer:  tracer,
		Metrics: metrics,
		Config:  cfg,
	}, nil
}

// WithContext adds the telemetry instance to the context.
func (t *Telemetry) WithContext(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, telemetryContextKey{}, t)
	ctx = t.Logger.WithContext(ctx)
	return ctx
}

// FromTelemetryContext retrieves the telemetry instance from the context.
// If no telemetry is found, it returns nil.
func FromTelemetryContext(ctx context.Context) *Telemetry {
	if t, ok := ctx.Value(telemetryContextKey{}).(*Telemetry); ok {
		return t
	}
	return nil
}

// Shutdown flushes pending spans and closes the log output.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if err := t.Tracer.Shutdown(ctx); err != nil {
		return err
	}
	return t.Logger.Close()
}

// Flush forces all pending telemetry data to be exported.
func (t *Telemetry) Flush(ctx context.Context) error {
	return t.Tracer.ForceFlush(ctx)
}

// StartMetricsServer starts the metrics HTTP server if metrics are enabled.
func (t *Telemetry) StartMetricsServer(ctx context.Context) error {
	return t.Metrics.StartMetricsServer(t.WithContext(ctx))
}

// InstrumentedContext creates a context with telemetry, logger fields, and a trace span.
type InstrumentedContext struct {
	Ctx    context.Context
	Span   trace.Span
	Logger *Logger
	Timer  *Timer
}

// StartOperation begins an instrumented operation with logging, tracing, and timing.
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
	if ic.Span != nil {
		if err != nil {
			RecordError(ic.Span, err)
		} else {
			RecordSuccess(ic.Span)
		}
		ic.Span.End()
	}
}

// StartInterpret begins the operation that interprets the named
// configuration sources.
func StartInterpret(ctx context.Context, sources ...string) *InstrumentedContext {
	return StartOperation(ctx, "config.interpret",
		AttrConfigSources.StringSlice(sources),
		attribute.String("span.kind", "interpret"),
	)
}

// runState is stored in a run context so EndRunContext can close the span
// and measure the run.
type runState struct {
	span  trace.Span
	start time.Time
}

// runStateKey is the context key for run state.
type runStateKey struct{}

// WithRunContext creates a context enriched with run-specific telemetry.
func WithRunContext(ctx context.Context, runID string, groups int) context.Context {
	logger := FromContext(ctx).WithRunID(runID)
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return logger.WithContext(ctx)
	}

	spanCtx, span := tel.Tracer.StartRunSpan(ctx, runID)
	span.SetAttributes(AttrRunGroups.Int(groups))
	spanCtx = logger.WithContext(spanCtx)

	tel.Metrics.RecordRunStarted()

	return context.WithValue(spanCtx, runStateKey{}, &runState{span: span, start: time.Now()})
}

// EndRunContext completes the run context, recording metrics.
func EndRunContext(ctx context.Context, status string, err error) {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return
	}

	state, ok := ctx.Value(runStateKey{}).(*runState)
	if !ok {
		return
	}
	state.span.SetAttributes(AttrRunStatus.String(status))
	if err != nil {
		RecordError(state.span, err)
	} else {
		RecordSuccess(state.span)
	}
	state.span.End()

	tel.Metrics.RecordRunCompleted(status, time.Since(state.start))
}

// RecordComparison runs fn inside a comparison span and records its
// duration and outcome.
func RecordComparison(ctx context.Context, seq int, names []string, fn func(context.Context) (float64, error)) (float64, error) {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return fn(ctx)
	}

	spanCtx, span := tel.Tracer.StartComparisonSpan(ctx, seq, names)
	defer span.End()

	timer := NewTimer()
	sim, err := fn(spanCtx)

	status := "ok"
	if err != nil {
		status = "error"
		RecordError(span, err)
	} else {
		RecordSuccess(span)
	}
	tel.Metrics.RecordComparison(status, timer)

	return sim, err
}

// RecordRetry counts a retried comparison, if telemetry is present.
func RecordRetry(ctx context.Context) {
	if tel := FromTelemetryContext(ctx); tel != nil {
		tel.Metrics.RecordRetry()
	}
}

// RecordStatement counts an interpreted configuration statement, if
// telemetry is present.
func RecordStatement(ctx context.Context, kind string) {
	if tel := FromTelemetryContext(ctx); tel != nil {
		tel.Metrics.RecordStatement(kind)
	}
}
