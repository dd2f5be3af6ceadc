package echoweb

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics are the frontend's prometheus collectors, registered on their own registry.
type Metrics struct {
	registry        *prometheus.Registry
	sessionEvents   *prometheus.CounterVec
	guardDecisions  *prometheus.CounterVec
	backendRequests *prometheus.CounterVec
	activeClients   prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sessionEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lms",
			Subsystem: "web",
			Name:      "session_events_total",
			Help:      "Session store operations by outcome.",
		}, []string{"event"}),
		guardDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lms",
			Subsystem: "web",
			Name:      "guard_decisions_total",
			Help:      "Route guard decisions.",
		}, []string{"guard", "outcome"}),
		backendRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lms",
			Subsystem: "web",
			Name:      "backend_requests_total",
			Help:      "Requests sent to the LMS backend.",
		}, []string{"code", "method"}),
		activeClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lms",
			Subsystem: "web",
			Name:      "active_clients",
			Help:      "Browser clients currently held in memory.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.sessionEvents,
		m.guardDecisions,
		m.backendRequests,
		m.activeClients,
	)
	return m
}

// InstrumentTransport counts the backend requests going through next.
func (m *Metrics) InstrumentTransport(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return promhttp.InstrumentRoundTripperCounter(m.backendRequests, next)
}

func (m *Metrics) sessionEvent(event string) {
	m.sessionEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) guardDecision(guard, outcome string) {
	m.guardDecisions.WithLabelValues(guard, outcome).Inc()
}

func (m *Metrics) handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
