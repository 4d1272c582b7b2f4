// Package otel provides OpenTelemetry bindings for core counters and
// histograms.
//
// [NewExporter] registers an Int64ObservableCounter per core counter and an
// Int64ObservableGauge per histogram bucket. A single callback reads
// [authority.Authority.MetricsSnapshot] on each collection cycle. The package
// never owns the MeterProvider; callers supply the Meter.
package otel
