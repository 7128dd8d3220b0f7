package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ricirt/updatesvc/internal/domain"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	EventsReceived   *prometheus.CounterVec
	EventsDropped    *prometheus.CounterVec
	Jobs             *prometheus.CounterVec
	JobLatency       *prometheus.HistogramVec
	MessagesInFlight prometheus.Gauge
}

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "updatesvc_events_received_total",
			Help: "Messages received per topic.",
		}, []string{"topic"}),

		EventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "updatesvc_events_dropped_total",
			Help: "Messages dropped before any job ran, by reason.",
		}, []string{"topic", "reason"}),

		Jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "updatesvc_jobs_total",
			Help: "Notification jobs by terminal state and failure reason.",
		}, []string{"topic", "state", "reason"}),

		JobLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "updatesvc_job_duration_seconds",
			Help:    "Time from job start to its terminal state.",
			Buckets: prometheus.DefBuckets,
		}, []string{"topic", "state"}),

		MessagesInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "updatesvc_messages_in_flight",
			Help: "Messages currently being processed.",
		}),
	}

	reg.MustRegister(
		m.EventsReceived,
		m.EventsDropped,
		m.Jobs,
		m.JobLatency,
		m.MessagesInFlight,
	)

	return m
}

// PipelineHooks returns the metric callbacks expected by pipeline.Hooks.
// Centralises the prometheus observation calls so the pipeline stays import-free.
func (m *Metrics) PipelineHooks() (
	onReceived func(domain.Topic),
	onDropped func(domain.Topic, string),
	onJob func(domain.Topic, domain.JobState, string, time.Duration),
) {
	onReceived = func(t domain.Topic) {
		m.EventsReceived.WithLabelValues(string(t)).Inc()
	}
	onDropped = func(t domain.Topic, reason string) {
		m.EventsDropped.WithLabelValues(string(t), reason).Inc()
	}
	onJob = func(t domain.Topic, s domain.JobState, reason string, latency time.Duration) {
		m.Jobs.WithLabelValues(string(t), string(s), reason).Inc()
		m.JobLatency.WithLabelValues(string(t), string(s)).Observe(latency.Seconds())
	}
	return
}
