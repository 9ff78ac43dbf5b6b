package metricsx

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the runtime's Prometheus metric set. The recording methods
// are no-ops on a nil *Metrics, so a consumer can take nil to mean
// "disabled" and tests never need a real registry; Handler needs a
// non-nil one.
type Metrics struct {
	registry *prometheus.Registry

	tailerGapsTotal  *prometheus.CounterVec
	tailerDropsTotal *prometheus.CounterVec

	fanOutTotal       prometheus.Counter
	subscriberSetSize *prometheus.GaugeVec

	reorderedDropsTotal *prometheus.CounterVec
}

// New builds a Metrics bound to a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		tailerGapsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "rocketspeed",
			Subsystem: "logtailer",
			Name:      "gaps_total",
			Help:      "Gaps reported by the log tailer, by gap type.",
		}, []string{"gap_type"}),
		tailerDropsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "rocketspeed",
			Subsystem: "logtailer",
			Name:      "stale_drops_total",
			Help:      "Stale re-deliveries dropped by the log tailer's NextExpectedSeqno check.",
		}, []string{"log_id"}),
		fanOutTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "rocketspeed",
			Subsystem: "controlroom",
			Name:      "fanout_deliveries_total",
			Help:      "Deliveries sent by the control room fan-out path.",
		}),
		subscriberSetSize: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "rocketspeed",
			Subsystem: "controlroom",
			Name:      "subscriber_set_size",
			Help:      "Current topic and subscriber counts known to the control room.",
		}, []string{"dimension"}),
		reorderedDropsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "rocketspeed",
			Subsystem: "rocketeer",
			Name:      "reordered_drops_total",
			Help:      "Deliver/Advance calls dropped by the Rocketeer server for non-advancing seqnos.",
		}, []string{"namespace", "topic"}),
	}
	return m
}

// Handler returns the HTTP handler serving this Metrics' registry in the
// standard Prometheus text exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// GapReported records one gap of gapType surfaced by the log tailer.
func (m *Metrics) GapReported(gapType string) {
	if m == nil {
		return
	}
	m.tailerGapsTotal.WithLabelValues(gapType).Inc()
}

// StaleDropped records one stale re-delivery dropped for logID.
func (m *Metrics) StaleDropped(logID string) {
	if m == nil {
		return
	}
	m.tailerDropsTotal.WithLabelValues(logID).Inc()
}

// FanOut implements controlroom.Metrics: records count deliveries sent by
// one fan-out pass.
func (m *Metrics) FanOut(count int) {
	if m == nil {
		return
	}
	m.fanOutTotal.Add(float64(count))
}

// SubscriberSetSize implements controlroom.Metrics: reports the current
// topic and subscriber counts as gauges.
func (m *Metrics) SubscriberSetSize(topics, subscribers int) {
	if m == nil {
		return
	}
	m.subscriberSetSize.WithLabelValues("topics").Set(float64(topics))
	m.subscriberSetSize.WithLabelValues("subscribers").Set(float64(subscribers))
}

// ReorderedDrop implements rocketeer.Metrics: records one dropped
// non-advancing Deliver/Advance call for (namespace, topic).
func (m *Metrics) ReorderedDrop(namespace, topic string) {
	if m == nil {
		return
	}
	m.reorderedDropsTotal.WithLabelValues(namespace, topic).Inc()
}
