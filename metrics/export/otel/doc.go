// Package otel binds goAccount engine metrics to OpenTelemetry.
//
// [NewOTelExporter] registers an Int64ObservableCounter per engine counter and
// an Int64ObservableGauge per histogram bucket. One callback reads
// [goAccount.Engine.MetricsSnapshot], [goAccount.Engine.AuditStats] and
// [goAccount.Engine.StoreStats] on each collection cycle, publishing the
// session and reset-code populations and the audit queue depth as gauges.
// Audit drops carry an "event" attribute.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
