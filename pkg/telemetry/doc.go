// Package telemetry provides observability instrumentation for mossy.
//
// The package combines structured logging (zerolog), distributed tracing
// (OpenTelemetry) and metrics (Prometheus) behind a single Telemetry value
// that travels in the context.
//
// # Usage
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.Logging.Output = "stderr"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	ctx = tel.WithContext(ctx)
//
// # Structured Logging
//
// The default output is "discard", so a plain command line run prints only
// its results. Warnings such as failed comparisons become visible once the
// output is set to stderr or a file:
//
//	logger := telemetry.FromContext(ctx).WithRunID(runID)
//	logger.WithGroup(names).WithError(err).Warn("Unable to compare")
//
// The console format renders lines as "<time> {LEVEL  } <message>".
//
// # Distributed Tracing
//
// A run is traced as one "run.execute" span with a "group.compare" child per
// compared group, and "config.interpret" for evaluating the configuration:
//
//	ctx = telemetry.WithRunContext(ctx, runID, groups)
//	defer telemetry.EndRunContext(ctx, "completed", nil)
//
//	sim, err := telemetry.RecordComparison(ctx, seq, names, compare)
//
// Supported exporters are otlp (gRPC), stdout and none. Sampling is parent
// based with a trace ID ratio.
//
// # Metrics
//
// Prometheus metrics live in a private registry under the "mossy"
// namespace:
//
//   - runs_started_total, runs_completed_total{status}, active_runs
//   - run_duration_seconds{status}
//   - comparisons_total{status}, comparison_duration_seconds{status}
//   - comparison_retries_total
//   - config_statements_total{kind}
//
// When metrics are disabled every recording method is a no-op. With
// metrics enabled, StartMetricsServer exposes them over HTTP until the
// passed context is done.
package telemetry
