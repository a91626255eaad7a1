// Package metrics defines the observability sinks fed by the collector, the
// prediction watcher and back-tests. Sinks like PromSink and InfluxSink are
// registered by infra/metrics and combined with NewMultiSink when more than
// one is configured.
package metrics
