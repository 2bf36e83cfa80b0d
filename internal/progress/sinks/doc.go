// Package sinks implements progress consumers: a stdout percentage, structured
// logs, and Prometheus gauges. Each satisfies progress.Sink.
package sinks
