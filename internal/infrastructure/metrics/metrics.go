package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors the service exports.
type Metrics struct {
	RequestCount    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	ActiveSessions    prometheus.Gauge
	SignalsProcessed  *prometheus.CounterVec
	PeerConnections   prometheus.Gauge
	LiveSubscriptions prometheus.Gauge
	PasteViews        prometheus.Counter
	CodeExecutions    *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RequestCount: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pastejet_http_requests_total",
			Help: "Total HTTP requests by method, path and status.",
		}, []string{"method", "path", "status"}),

		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pastejet_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),

		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pastejet_lab_sessions_active",
			Help: "Currently running room sessions.",
		}),

		SignalsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pastejet_lab_signals_total",
			Help: "Signaling messages processed by kind.",
		}, []string{"kind"}),

		PeerConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pastejet_lab_peer_connections",
			Help: "Open peer connections across all sessions.",
		}),

		LiveSubscriptions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pastejet_store_subscriptions",
			Help: "Open live query subscriptions.",
		}),

		PasteViews: factory.NewCounter(prometheus.CounterOpts{
			Name: "pastejet_paste_views_total",
			Help: "Successful paste views.",
		}),

		CodeExecutions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pastejet_code_executions_total",
			Help: "Code execution requests by language and outcome.",
		}, []string{"language", "outcome"}),
	}
}

// NewDefault registers against the default global registry.
func NewDefault() *Metrics {
	return New(prometheus.DefaultRegisterer)
}
