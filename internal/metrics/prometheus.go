package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder publishes relay metrics to Prometheus. A nil *Recorder records
// nothing.
type Recorder struct {
	deliveries    *prometheus.CounterVec
	announcements *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	pending       prometheus.Gauge
	latency       *prometheus.HistogramVec
}

// New registers the relay metrics with reg.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		deliveries: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalrelay_deliveries_total",
				Help: "Messages posted per destination by message kind and outcome",
			},
			[]string{"kind", "destination", "outcome"},
		),
		announcements: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalrelay_announcements_total",
				Help: "Scheduled announcements dispatched",
			},
			[]string{"type"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalrelay_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		pending: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "signalrelay_ready_signals",
				Help: "Ready, unsent signals seen by the last poll",
			},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "signalrelay_tick_duration_seconds",
				Help:    "Duration of scheduler ticks in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"job"},
		),
	}
}

// RecordDelivery records one send attempt.
func (r *Recorder) RecordDelivery(kind, destination, outcome string) {
	if r == nil {
		return
	}
	r.deliveries.WithLabelValues(kind, destination, outcome).Inc()
}

func (r *Recorder) RecordAnnouncement(eventType string) {
	if r == nil {
		return
	}
	r.announcements.WithLabelValues(eventType).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	if r == nil {
		return
	}
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) SetPending(n int) {
	if r == nil {
		return
	}
	r.pending.Set(float64(n))
}

// RecordLatency records tick latency in seconds.
func (r *Recorder) RecordLatency(job string, seconds float64) {
	if r == nil {
		return
	}
	r.latency.WithLabelValues(job).Observe(seconds)
}
