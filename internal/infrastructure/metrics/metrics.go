package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "luke"

// Metrics contains the dashboard's Prometheus collectors.
type Metrics struct {
	// Gateway transport
	GatewayRequests        *prometheus.CounterVec
	GatewayRequestDuration *prometheus.HistogramVec
	ObserveConnects        *prometheus.CounterVec
	ObserveReconnects      prometheus.Counter
	ObserveOpen            prometheus.Gauge

	// Discovery
	NodesDiscovered *prometheus.CounterVec
	NodesEvicted    *prometheus.CounterVec
	Nodes           *prometheus.GaugeVec

	// User actions
	Actions *prometheus.CounterVec

	// Browser connections
	WebSocketClients prometheus.Gauge
}

// New creates the collectors without registering them anywhere.
func New() *Metrics {
	return &Metrics{
		GatewayRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "gateway",
				Name:      "requests_total",
				Help:      "Total number of GET/POST requests sent through the gateway",
			},
			[]string{"method", "outcome"},
		),

		GatewayRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "gateway",
				Name:      "request_duration_seconds",
				Help:      "Gateway request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),

		ObserveConnects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "observe",
				Name:      "connects_total",
				Help:      "Observation connection attempts by outcome",
			},
			[]string{"outcome"},
		),

		ObserveReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "observe",
				Name:      "reconnects_total",
				Help:      "Observation reopen attempts after a close or dial failure",
			},
		),

		ObserveOpen: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "observe",
				Name:      "open",
				Help:      "Number of observation channels currently open",
			},
		),

		NodesDiscovered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "discovery",
				Name:      "nodes_discovered_total",
				Help:      "Nodes created from discovery updates",
			},
			[]string{"kind"},
		),

		NodesEvicted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "discovery",
				Name:      "nodes_evicted_total",
				Help:      "Nodes evicted because another node claimed the same kind",
			},
			[]string{"kind"},
		),

		Nodes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "discovery",
				Name:      "nodes",
				Help:      "Nodes currently in the registry",
			},
			[]string{"kind"},
		),

		Actions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "actions_total",
				Help:      "User actions (link, unlink, reboot, hide) by outcome",
			},
			[]string{"action", "outcome"},
		),

		WebSocketClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "api",
				Name:      "websocket_clients",
				Help:      "Browser WebSocket clients currently connected",
			},
		),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.GatewayRequests,
		m.GatewayRequestDuration,
		m.ObserveConnects,
		m.ObserveReconnects,
		m.ObserveOpen,
		m.NodesDiscovered,
		m.NodesEvicted,
		m.Nodes,
		m.Actions,
		m.WebSocketClients,
	}
}

// Registry owns a Prometheus registry holding the dashboard metrics and the
// Go runtime collectors.
type Registry struct {
	prometheusRegistry *prometheus.Registry
	Metrics            *Metrics
}

// NewRegistry creates a registry with all dashboard metrics registered.
func NewRegistry() *Registry {
	r := &Registry{
		prometheusRegistry: prometheus.NewRegistry(),
		Metrics:            New(),
	}

	r.prometheusRegistry.MustRegister(r.Metrics.collectors()...)
	r.prometheusRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

// PrometheusRegistry returns the underlying Prometheus registry.
func (r *Registry) PrometheusRegistry() *prometheus.Registry {
	return r.prometheusRegistry
}

// Handler returns an HTTP handler exposing the registry in the Prometheus
// text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.prometheusRegistry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
