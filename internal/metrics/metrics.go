package metrics

import (
	"net/http"
	"strconv"
	"time"

	"dialer-platform/internal/calls"
	"dialer-platform/internal/leads"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dialer"

// Metrics holds all Prometheus collectors for the dialer process.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Queue metrics
	AssignmentsTotal *prometheus.CounterVec
	OutcomesTotal    *prometheus.CounterVec
	RequestsRejected *prometheus.CounterVec

	// Trash metrics
	TrashAffected *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers every collector on reg. Passing a fresh registry keeps tests isolated.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "action", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "action"},
		),
		AssignmentsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "assignments_total",
				Help:      "request-next results by category and result (assigned, empty)",
			},
			[]string{"category", "result"},
		),
		OutcomesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "call_outcomes_total",
				Help:      "Completed calls by outcome and resulting lead status",
			},
			[]string{"outcome", "new_status"},
		),
		RequestsRejected: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_rejected_total",
				Help:      "Requests rejected before reaching the engine, by reason",
			},
			[]string{"reason"},
		),
		TrashAffected: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trash_rows_total",
				Help:      "Rows affected by trash operations",
			},
			[]string{"entity", "operation"},
		),
		gatherer: reg,
	}
}

// Handler exposes the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency per dialer action.
// Only names in actions become label values; anything else a client sends is
// folded into "unknown" so the series count stays fixed.
func (m *Metrics) Middleware(actions ...string) gin.HandlerFunc {
	known := make(map[string]struct{}, len(actions))
	for _, a := range actions {
		known[a] = struct{}{}
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		action := actionLabel(known, c.Query("action"), c.FullPath())
		status := strconv.Itoa(c.Writer.Status())
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, action, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, action).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) AssignmentServed(category string) {
	m.AssignmentsTotal.WithLabelValues(categoryLabel(category), "assigned").Inc()
}

func (m *Metrics) AssignmentEmpty(category string) {
	m.AssignmentsTotal.WithLabelValues(categoryLabel(category), "empty").Inc()
}

func (m *Metrics) OutcomeRecorded(outcome calls.Outcome, newStatus leads.Status) {
	m.OutcomesTotal.WithLabelValues(string(outcome), string(newStatus)).Inc()
}

func (m *Metrics) RequestRejected(reason string) {
	m.RequestsRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) TrashRecorded(entity, operation string, affected int) {
	if affected <= 0 {
		return
	}
	m.TrashAffected.WithLabelValues(entity, operation).Add(float64(affected))
}

func actionLabel(known map[string]struct{}, action, route string) string {
	if action != "" {
		if _, ok := known[action]; ok {
			return action
		}
		return "unknown"
	}
	if route == "" {
		return "unmatched"
	}
	return route
}

// categoryLabel keeps category filters out of label values.
func categoryLabel(c string) string {
	if c == "" {
		return "any"
	}
	return "filtered"
}
