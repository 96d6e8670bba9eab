// Package observability wires OpenTelemetry tracing and metrics.
//
// The Telemetry component installs OTLP/HTTP providers when enabled. Code
// instruments itself against the global providers, so spans and metrics are
// no-ops until Telemetry starts.
//
//	ctx, span := observability.StartSpan(ctx, observability.SpanHandle)
//	defer span.End()
//
//	metrics, err := observability.NewMetrics(observability.Meter())
//	metrics.RecordSchedule(ctx, "accepted")
package observability
