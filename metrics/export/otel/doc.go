// Package otel bridges the engine's in-process metrics to OpenTelemetry.
// Counters and the validate-latency histogram are exposed as observable
// instruments sampled on each collection cycle, so the hot paths never pay
// for export.
package otel
