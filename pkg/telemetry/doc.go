// Package telemetry provides structured logging, Prometheus metrics, and
// OpenTelemetry tracing for the apply engine.
package telemetry
