package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application. Each instance owns
// its registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	UsersRegistered prometheus.Counter
	MessagesSent    prometheus.Counter
	TicketsSold     prometheus.Counter
	TicketsRejected *prometheus.CounterVec
	MatchesCreated  prometheus.Counter
	RateLimited     prometheus.Counter
}

// New creates and registers all Prometheus metrics
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "socialtinder_http_requests_total",
			Help: "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "socialtinder_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		RequestsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "socialtinder_http_requests_in_flight",
			Help: "HTTP requests currently being served",
		}),
		UsersRegistered: f.NewCounter(prometheus.CounterOpts{
			Name: "socialtinder_users_registered_total",
			Help: "Accounts created through /api/register",
		}),
		MessagesSent: f.NewCounter(prometheus.CounterOpts{
			Name: "socialtinder_messages_sent_total",
			Help: "User messages stored, system messages excluded",
		}),
		TicketsSold: f.NewCounter(prometheus.CounterOpts{
			Name: "socialtinder_tickets_sold_total",
			Help: "Tickets sold across all events",
		}),
		TicketsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "socialtinder_ticket_purchases_rejected_total",
			Help: "Rejected ticket purchases by reason",
		}, []string{"reason"}),
		MatchesCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "socialtinder_matches_created_total",
			Help: "Mutual likes turned into matches",
		}),
		RateLimited: f.NewCounter(prometheus.CounterOpts{
			Name: "socialtinder_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		}),
	}
}

// RecordHTTPRequest records one finished request.
func (m *Metrics) RecordHTTPRequest(method, route, status string, d time.Duration) {
	m.RequestsTotal.WithLabelValues(method, route, status).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Handler serves this instance's registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the registry to tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
