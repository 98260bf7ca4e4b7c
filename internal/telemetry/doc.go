// Package telemetry installs the OpenTelemetry tracer and meter providers
// for lexivoice and exports them over OTLP.
//
// Instrumented packages call otel.Tracer and otel.Meter directly. With
// telemetry disabled those globals stay no-op. Exporter setup failures
// never stop the service: the instance reports itself degraded through
// Health and the failed signal stays no-op.
package telemetry
