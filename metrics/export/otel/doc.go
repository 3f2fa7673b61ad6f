// Package otel provides OpenTelemetry metric bindings for duoauth engine
// counters and histograms.
//
// [NewOTelExporter] registers an Int64ObservableCounter per engine counter
// and Int64ObservableGauges per histogram bucket. A single callback reads
// [duoauth.Engine.MetricsSnapshot] on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider — callers supply the Meter.
//   - Mutate engine state.
package otel
