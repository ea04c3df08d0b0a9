package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/notifyhub/pipeline/internal/domain"
	"github.com/notifyhub/pipeline/internal/priority"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	NotificationsSent    *prometheus.CounterVec
	NotificationsFailed  *prometheus.CounterVec
	NotificationsDropped *prometheus.CounterVec
	DedupSkipped         *prometheus.CounterVec
	NotificationLatency  *prometheus.HistogramVec
	DLQDepth             *prometheus.GaugeVec
	QueueDepth           *prometheus.GaugeVec
}

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		NotificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Total number of successfully delivered notifications.",
		}, []string{"channel"}),

		NotificationsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_failed_total",
			Help: "Total number of deliveries that exhausted retries and were pushed to the DLQ.",
		}, []string{"channel"}),

		NotificationsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_dropped_total",
			Help: "Total number of deliveries dropped with no retry (no sender registered for the channel).",
		}, []string{"channel"}),

		DedupSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_dedup_skipped_total",
			Help: "Total number of per-subscriber sends skipped because the dedup window already marked them sent.",
		}, []string{"channel"}),

		NotificationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "notification_processing_seconds",
			Help:    "Time spent in the sender's Send call for each successful delivery.",
			Buckets: prometheus.DefBuckets,
		}, []string{"channel"}),

		DLQDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "notifications_dlq_depth",
			Help: "Approximate number of payloads currently queued for repeater retry, by queue.",
		}, []string{"queue"}),

		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "notifications_queue_depth",
			Help: "Approximate number of messages currently queued, by queue.",
		}, []string{"queue"}),
	}

	reg.MustRegister(
		m.NotificationsSent,
		m.NotificationsFailed,
		m.NotificationsDropped,
		m.DedupSkipped,
		m.NotificationLatency,
		m.DLQDepth,
		m.QueueDepth,
	)

	return m
}

// FormerHooks returns the metric callback functions the Former worker
// invokes per subscriber outcome. Centralizes the prometheus observation
// calls so the worker package stays import-free of the metrics package's instrument
// types.
func (m *Metrics) FormerHooks() (
	onSent func(domain.ChannelType, time.Duration),
	onFailed func(domain.ChannelType),
	onDropped func(domain.ChannelType),
	onDedupSkipped func(domain.ChannelType),
) {
	onSent = func(ch domain.ChannelType, latency time.Duration) {
		m.NotificationsSent.WithLabelValues(string(ch)).Inc()
		m.NotificationLatency.WithLabelValues(string(ch)).Observe(latency.Seconds())
	}
	onFailed = func(ch domain.ChannelType) {
		m.NotificationsFailed.WithLabelValues(string(ch)).Inc()
	}
	onDropped = func(ch domain.ChannelType) {
		m.NotificationsDropped.WithLabelValues(string(ch)).Inc()
	}
	onDedupSkipped = func(ch domain.ChannelType) {
		m.DedupSkipped.WithLabelValues(string(ch)).Inc()
	}
	return
}

// DepthHooks returns the gauge callback functions the Repeater invokes
// after each tick to report live queue and DLQ backlog depths.
func (m *Metrics) DepthHooks() (
	setQueueDepth func(priority.QueueName, int64),
	setDLQDepth func(priority.QueueName, int64),
) {
	setQueueDepth = func(q priority.QueueName, depth int64) {
		m.QueueDepth.WithLabelValues(string(q)).Set(float64(depth))
	}
	setDLQDepth = func(q priority.QueueName, depth int64) {
		m.DLQDepth.WithLabelValues(string(q)).Set(float64(depth))
	}
	return
}
