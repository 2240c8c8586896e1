package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	Requests    *prometheus.CounterVec
	Latency     *prometheus.HistogramVec
	Conversions *prometheus.CounterVec
	Scheduled   prometheus.Counter
	Pending     prometheus.Gauge
	ClockConns  prometheus.Gauge
}

// NewMetrics registers every collector, plus the Go runtime collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zeilumara",
			Name:      "http_requests_total",
			Help:      "API requests by route and status code.",
		}, []string{"route", "method", "code"}),
		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "zeilumara",
			Name:      "http_request_duration_seconds",
			Help:      "API request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		Conversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zeilumara",
			Name:      "conversions_total",
			Help:      "Time conversions by direction.",
		}, []string{"direction"}),
		Scheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "zeilumara",
			Name:      "triggers_scheduled_total",
			Help:      "Notification triggers added.",
		}),
		Pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "zeilumara",
			Name:      "triggers_pending",
			Help:      "Pending notification triggers after the last reschedule.",
		}),
		ClockConns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "zeilumara",
			Name:      "clock_websocket_connections",
			Help:      "Open live clock WebSocket connections.",
		}),
	}
	reg.MustRegister(
		m.Requests, m.Latency, m.Conversions, m.Scheduled, m.Pending, m.ClockConns,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, for tests and embedding.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware counts and times requests by their route template.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		m.Latency.WithLabelValues(route).Observe(time.Since(start).Seconds())
		m.Requests.WithLabelValues(route, r.Method, strconv.Itoa(rec.code)).Inc()
	})
}
