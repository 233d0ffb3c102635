// Package telemetry provides structured logging, Prometheus metrics, and
// OpenTelemetry tracing for stackfan.
//
// Logging is zerolog-backed with field helpers for the domain identifiers
// (stack set, target, operation id, step id). Metrics cover reconciliation
// steps, mutating calls, operation waits, polls, and classified errors, and
// can be exposed over HTTP in continuous mode. Tracing emits a span per
// reconciliation step and per awaited operation, exported to stdout or an
// OTLP gRPC collector.
package telemetry
