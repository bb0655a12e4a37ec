package doubaotts

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures the Prometheus collectors.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "doubaotts").
	Namespace string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for handshake duration.
	// Default: prometheus.DefBuckets
	Buckets []float64
}

// MetricsOption configures the Prometheus collectors.
type MetricsOption func(*MetricsConfig)

// WithMetricsNamespace sets the metrics namespace.
func WithMetricsNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the handshake histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// Metrics holds the client's Prometheus collectors. One Metrics may be shared
// by many clients. A nil *Metrics records nothing.
type Metrics struct {
	framesSent        *prometheus.CounterVec
	framesReceived    *prometheus.CounterVec
	audioBytes        prometheus.Counter
	handshakeDuration *prometheus.HistogramVec
	errors            *prometheus.CounterVec
	activeSessions    prometheus.Gauge
}

// NewMetrics creates and registers the collectors with reg. A nil reg uses
// prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer, opts ...MetricsOption) *Metrics {
	config := MetricsConfig{
		Namespace: "doubaotts",
		Buckets:   prometheus.DefBuckets,
	}
	for _, opt := range opts {
		opt(&config)
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		framesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "frames_sent_total",
			Help:        "Total number of frames written to the service",
			ConstLabels: config.ConstLabels,
		}, []string{"event"}),

		framesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "frames_received_total",
			Help:        "Total number of frames received from the service",
			ConstLabels: config.ConstLabels,
		}, []string{"event"}),

		audioBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "audio_bytes_total",
			Help:        "Total bytes of synthesized audio delivered to callbacks",
			ConstLabels: config.ConstLabels,
		}),

		handshakeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Name:        "handshake_duration_seconds",
			Help:        "Time from request to acknowledgement of connection and session start",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"phase"}),

		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "errors_total",
			Help:        "Total number of client errors by kind",
			ConstLabels: config.ConstLabels,
		}, []string{"kind"}),

		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Name:        "active_sessions",
			Help:        "Number of sessions currently active",
			ConstLabels: config.ConstLabels,
		}),
	}
}

func (m *Metrics) frameSent(e Event) {
	if m == nil {
		return
	}
	m.framesSent.WithLabelValues(e.String()).Inc()
}

func (m *Metrics) frameReceived(e Event) {
	if m == nil {
		return
	}
	m.framesReceived.WithLabelValues(e.String()).Inc()
}

func (m *Metrics) audio(n int) {
	if m == nil {
		return
	}
	m.audioBytes.Add(float64(n))
}

func (m *Metrics) handshake(phase string, since time.Time) {
	if m == nil {
		return
	}
	m.handshakeDuration.WithLabelValues(phase).Observe(time.Since(since).Seconds())
}

func (m *Metrics) error(kind string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(kind).Inc()
}

func (m *Metrics) sessionOpened() {
	if m == nil {
		return
	}
	m.activeSessions.Inc()
}

func (m *Metrics) sessionClosed() {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
}
