package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "city_weather"

// Observation outcomes recorded by ObservationsSubmitted.
const (
	OutcomeCreated  = "created"
	OutcomeInvalid  = "invalid"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)

// Ingest sources recorded by ObservationsSubmitted.
const (
	SourceHTTP = "http"
	SourceMQTT = "mqtt"
)

// Metrics holds the Prometheus collectors for the service.
type Metrics struct {
	HTTPRequests        *prometheus.CounterVec   // labels: method, route, status
	HTTPRequestDuration *prometheus.HistogramVec // labels: method, route

	ObservationsSubmitted *prometheus.CounterVec // labels: source={http,mqtt}, outcome={created,invalid,conflict,error}
	StoreQueryErrors      *prometheus.CounterVec // labels: operation
	MQTTConnected         prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg. Tests pass
// a fresh prometheus.NewRegistry() to avoid duplicate registration panics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, matched route and status code.",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and matched route.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"method", "route"}),
		ObservationsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_submitted_total",
			Help:      "Observation submissions by ingest source and outcome.",
		}, []string{"source", "outcome"}),
		StoreQueryErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_query_errors_total",
			Help:      "Failed read queries by operation.",
		}, []string{"operation"}),
		MQTTConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mqtt_connected",
			Help:      "1 while the MQTT subscriber is connected, 0 otherwise.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.HTTPRequests,
			m.HTTPRequestDuration,
			m.ObservationsSubmitted,
			m.StoreQueryErrors,
			m.MQTTConnected,
		)
	}
	return m
}
