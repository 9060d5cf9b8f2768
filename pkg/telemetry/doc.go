// Package telemetry provides logging, tracing, metrics and run events for
// the badge collector.
//
// Logger wraps zerolog. Tracer wraps an OpenTelemetry tracer provider with a
// stdout or OTLP exporter and is handed to the orchestrator, which opens
// run.execute, phase.execute and handler.execute spans. Metrics and
// EventPublisher observe runs and status transitions; metrics can be
// served over HTTP or written to a node_exporter textfile after a run.
package telemetry
