// Package otel publishes engine metrics through an OpenTelemetry Meter.
//
// [NewExporter] registers one observable counter per engine counter and, for
// each latency histogram, a bucket gauge keyed by an "le" attribute. A single
// callback reads [siteAuth.Engine.MetricsSnapshot] each collection cycle.
//
// [LogExporter] is a minimal sdkmetric exporter that writes collections to
// slog, used by siteauth-server when no collector is configured.
package otel
