// Package progress carries crawl progress events from the aggregator to
// pluggable sinks. Emitting never blocks the caller: events are buffered, batched
// on a background goroutine, and fanned out to sinks such as a stdout
// percentage, structured logs, or Prometheus gauges.
package progress
