package telemetry_test

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/openfroyo/pakit/pkg/telemetry"
)

// Example_basicSetup demonstrates basic telemetry setup.
func Example_basicSetup() {
	cfg := telemetry.DefaultConfig()
	cfg.ServiceVersion = "1.0.0"

	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		panic(err)
	}
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	logger := telemetry.FromContext(ctx)
	logger.Info("pakit started")
}

// Example_structuredLogging demonstrates structured logging features.
func Example_structuredLogging() {
	cfg := telemetry.DefaultConfig()
	cfg.Logging.Level = "debug"

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	logger := tel.Logger.NewComponentLogger("pipeline").
		WithRunID("3c2f0e8e-run").
		WithEntry("Controls/4.json")

	logger.Debug("parsed control document")
	logger.WithError(fmt.Errorf("unexpected end of JSON input")).Error("control document is malformed")
}

// Example_runStages demonstrates instrumenting a command run.
func Example_runStages() {
	cfg := telemetry.DefaultConfig()
	cfg.Tracing.Enabled = true
	cfg.Tracing.Exporter = "none"

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	run := tel.StartRun(context.Background(), "normalize", "run-1")
	err := tel.RunStage(run.Ctx, "normalize_trees", func(ctx context.Context) error {
		tel.Metrics.AddControls(12)
		telemetry.Annotate(ctx, telemetry.AttrControls.Int(12))
		return nil
	})
	run.End(err)
}

// Example_instrumentedOperation demonstrates StartOperation.
func Example_instrumentedOperation() {
	tel := telemetry.Noop()
	ctx := tel.WithContext(context.Background())

	ic := telemetry.StartOperation(ctx, "schema.compile",
		attribute.String("schema.source", "embedded"))
	defer ic.End(nil)

	ic.Logger.Debug("compiling schema")
}

// Example_textfileMetrics demonstrates writing metrics for a node exporter.
func Example_textfileMetrics() {
	cfg := telemetry.DefaultConfig()
	cfg.Metrics.Textfile = "/tmp/pakit.prom"

	tel, _ := telemetry.NewTelemetry(cfg)
	tel.Metrics.AddValidationIssues(3)

	if err := tel.Shutdown(context.Background()); err != nil {
		fmt.Println(err)
	}
}
