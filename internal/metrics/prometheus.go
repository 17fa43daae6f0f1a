package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements the Collector interface using Prometheus metrics.
type PrometheusCollector struct {
	// Connection metrics
	connectionsTotal   prometheus.Counter
	connectionsActive  prometheus.Gauge
	tlsConnectionTotal prometheus.Counter

	// Request metrics
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	// Codec metrics
	decodeErrorsTotal *prometheus.CounterVec

	// Proxy client metrics
	proxySessionsTotal prometheus.Counter
	proxyFailuresTotal *prometheus.CounterVec
}

// NewPrometheusCollector creates a new PrometheusCollector with all metrics registered.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	c := &PrometheusCollector{
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "attrlookupd_connections_total",
			Help: "Total number of client connections opened.",
		}),
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "attrlookupd_connections_active",
			Help: "Number of currently active client connections.",
		}),
		tlsConnectionTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "attrlookupd_tls_connections_total",
			Help: "Total number of TLS connections established.",
		}),

		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attrlookupd_requests_total",
			Help: "Total number of lookup requests processed.",
		}, []string{"table", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "attrlookupd_request_duration_seconds",
			Help:    "Time spent serving one lookup request.",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"table"}),

		decodeErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attrlookupd_decode_errors_total",
			Help: "Total number of attribute-list decode failures.",
		}, []string{"kind"}),

		proxySessionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "attrlookupd_proxy_sessions_total",
			Help: "Total number of pass-through proxy sessions opened.",
		}),
		proxyFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attrlookupd_proxy_failures_total",
			Help: "Total number of proxy sessions that failed, by stage.",
		}, []string{"stage"}),
	}

	// Register all metrics
	reg.MustRegister(
		c.connectionsTotal,
		c.connectionsActive,
		c.tlsConnectionTotal,
		c.requestsTotal,
		c.requestDuration,
		c.decodeErrorsTotal,
		c.proxySessionsTotal,
		c.proxyFailuresTotal,
	)

	return c
}

// ConnectionOpened increments the connection counter and active gauge.
func (c *PrometheusCollector) ConnectionOpened() {
	c.connectionsTotal.Inc()
	c.connectionsActive.Inc()
}

// ConnectionClosed decrements the active connections gauge.
func (c *PrometheusCollector) ConnectionClosed() {
	c.connectionsActive.Dec()
}

// TLSConnectionEstablished increments the TLS connection counter.
func (c *PrometheusCollector) TLSConnectionEstablished() {
	c.tlsConnectionTotal.Inc()
}

// RequestProcessed increments the request counter.
func (c *PrometheusCollector) RequestProcessed(table string, status string) {
	c.requestsTotal.WithLabelValues(table, status).Inc()
}

// RequestDuration observes the time spent serving one request.
func (c *PrometheusCollector) RequestDuration(table string, seconds float64) {
	c.requestDuration.WithLabelValues(table).Observe(seconds)
}

// DecodeError increments the decode error counter.
func (c *PrometheusCollector) DecodeError(kind string) {
	c.decodeErrorsTotal.WithLabelValues(kind).Inc()
}

// ProxySessionOpened increments the proxy session counter.
func (c *PrometheusCollector) ProxySessionOpened() {
	c.proxySessionsTotal.Inc()
}

// ProxySessionFailed increments the proxy failure counter.
func (c *PrometheusCollector) ProxySessionFailed(stage string) {
	c.proxyFailuresTotal.WithLabelValues(stage).Inc()
}
