// Package metricsx collects the runtime's Prometheus metrics: log tailer
// gap/drop counters and control room fan-out/subscriber-set gauges. It
// mirrors the shape of sevenDatabase-SevenDB's internal/observability
// metrics surface (bucketed counters and gauges scraped over HTTP), built
// on github.com/prometheus/client_golang instead of a hand-rolled text
// endpoint.
package metricsx
