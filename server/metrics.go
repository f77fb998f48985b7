package server

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports HTTP and relay telemetry to Prometheus.
type Metrics struct {
	requestDuration *prometheus.HistogramVec
	requestsTotal   *prometheus.CounterVec
	sessionsStarted prometheus.Counter
	jobEvents       *prometheus.CounterVec
	sseClients      prometheus.Gauge
}

// NewMetrics registers the souschef server metrics on the given registerer.
// Collectors that are already registered are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "souschef",
			Name:      "http_request_duration_seconds",
			Help:      "Latency of inbound HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "souschef",
			Name:      "http_requests_total",
			Help:      "Count of inbound HTTP requests by outcome.",
		}, []string{"method", "route", "status"}),
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "souschef",
			Name:      "sessions_started_total",
			Help:      "Count of successfully started cooking sessions.",
		}),
		jobEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "souschef",
			Name:      "job_progress_events_total",
			Help:      "Count of ingested job progress notifications by status.",
		}, []string{"status"}),
		sseClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "souschef",
			Name:      "sse_clients",
			Help:      "Number of currently connected SSE subscribers.",
		}),
	}

	collectors := []prometheus.Collector{
		m.requestDuration, m.requestsTotal, m.sessionsStarted, m.jobEvents, m.sseClients,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return nil, fmt.Errorf("register server metric: %w", err)
		}
	}
	return m, nil
}

// ObserveRequest records one finished HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, dur time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.requestDuration.WithLabelValues(method, route).Observe(dur.Seconds())
	m.requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

// SessionStarted counts one started session.
func (m *Metrics) SessionStarted() { m.sessionsStarted.Inc() }

// JobEvent counts one ingested job progress notification.
func (m *Metrics) JobEvent(status string) { m.jobEvents.WithLabelValues(status).Inc() }

// SSEConnected tracks an SSE subscriber attaching.
func (m *Metrics) SSEConnected() { m.sseClients.Inc() }

// SSEDisconnected tracks an SSE subscriber detaching.
func (m *Metrics) SSEDisconnected() { m.sseClients.Dec() }
