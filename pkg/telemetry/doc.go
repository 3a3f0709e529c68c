// Package telemetry provides logging, tracing and metrics for pakit runs.
//
// The package integrates structured logging (zerolog), tracing
// (OpenTelemetry) and metrics (Prometheus) behind one Telemetry value that
// the CLI builds once and hands to the pack pipeline.
//
// # Usage
//
// Initialize telemetry at startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.Metrics.Textfile = "/var/lib/node_exporter/pakit.prom"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
// Wrap a command run and its stages:
//
//	run := tel.StartRun(ctx, "normalize", runID)
//	err := tel.RunStage(run.Ctx, "resolve_templates", func(ctx context.Context) error {
//	    telemetry.FromContext(ctx).Debug("resolving")
//	    return nil
//	})
//	run.End(err)
//
// # Structured Logging
//
// Loggers carry the run id, stage and entry path as fields:
//
//	logger := tel.Logger.NewComponentLogger("pipeline").WithRunID(runID)
//	logger.WithEntry("Controls/1.json").Debug("parsed")
//
// Core packages take a plain zerolog.Logger; use Logger.Zerolog to hand one
// over.
//
// # Tracing
//
// Every pipeline stage gets a span named pipeline.<stage> under the root
// span pakit.<command>. Supported exporters are otlp (gRPC) and stdout.
// Tracing is off unless enabled in configuration or with --trace.
//
// # Metrics
//
// Collectors live in a per-process registry, never the global one:
//
//	pakit_runs_total{command,status}
//	pakit_run_duration_seconds{command}
//	pakit_stage_duration_seconds{stage}
//	pakit_controls_processed_total
//	pakit_gallery_templates_synthesized_total
//	pakit_groups_flattened_total
//	pakit_templates_resolved_total{kind}
//	pakit_documents_rewritten_total{path}
//	pakit_validation_issues_total
//	pakit_errors_by_class_total{class}
//
// A one-shot command cannot be scraped, so the registry is written to a
// node-exporter textfile on Shutdown when Metrics.Textfile is set. Watch
// mode can additionally serve /metrics on Metrics.ListenAddress.
package telemetry
