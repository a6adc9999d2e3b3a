// Package telemetry provides the observability of provisioning runs.
//
// It integrates structured logging (zerolog), tracing (OpenTelemetry) and
// metrics (Prometheus):
//
//  1. NewLogger builds the root zerolog.Logger; packages derive component
//     loggers from it with a "component" field.
//  2. NewTracer installs the global trace provider. The task runtime starts
//     one "unit.run" span per unit; the CLI wraps a run in "run.execute".
//  3. Metrics is an engine.Observer counting targets per action and outcome,
//     and the running-units gauge of the task runtime. Because the CLI is
//     short-lived, metrics are written to a node_exporter textfile instead
//     of being served over HTTP.
//
// Summary is a second observer that collects the reports for the table
// printed at the end of a run.
//
// # Usage
//
//	cfg := telemetry.DefaultConfig()
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	builder := engine.NewBuilder(runner, dispatcher, tel.Logger,
//	    engine.WithObserver(tel.Metrics))
package telemetry
