// Package metrics exposes monitor counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lotwatch"

// Notification outcomes.
const (
	ResultSent    = "sent"
	ResultFailed  = "failed"
	ResultDropped = "dropped"
)

// Metrics holds all monitor collectors on a private registry.
type Metrics struct {
	FramesRead       prometheus.Counter
	DetectorRuns     prometheus.Counter
	DetectorSkipped  prometheus.Counter
	DetectorErrors   prometheus.Counter
	DetectorDuration prometheus.Histogram
	Events           *prometheus.CounterVec
	Notifications    *prometheus.CounterVec
	Present          prometheus.Gauge
	Count            prometheus.Gauge
	QueueDepth       prometheus.Gauge

	registry *prometheus.Registry
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		FramesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_read_total",
			Help:      "Total frames read from the camera",
		}),
		DetectorRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detector_runs_total",
			Help:      "Total detector invocations",
		}),
		DetectorSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detector_skipped_total",
			Help:      "Scheduled detector runs skipped because the region showed no motion",
		}),
		DetectorErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detector_errors_total",
			Help:      "Detector failures and timeouts",
		}),
		DetectorDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "detector_duration_seconds",
			Help:      "Detector latency",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Debounced events by kind",
		}, []string{"kind"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification attempts by result",
		}, []string{"result"}),
		Present: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "vehicle_present",
			Help:      "1 while a vehicle is confirmed present",
		}),
		Count: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "vehicle_count",
			Help:      "Confirmed vehicle count",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dispatch_queue_depth",
			Help:      "Events waiting for snapshot and notification",
		}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.FramesRead,
		m.DetectorRuns,
		m.DetectorSkipped,
		m.DetectorErrors,
		m.DetectorDuration,
		m.Events,
		m.Notifications,
		m.Present,
		m.Count,
		m.QueueDepth,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// SetPresent sets the presence gauge.
func (m *Metrics) SetPresent(present bool) {
	if present {
		m.Present.Set(1)
		return
	}
	m.Present.Set(0)
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
