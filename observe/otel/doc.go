// Package otel provides an OpenTelemetry observer plugin for the conc library.
// It emits span events (spawn, cancel, join, error, panic) with low overhead.
package otel
