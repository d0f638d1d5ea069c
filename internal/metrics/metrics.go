// Package metrics provides Prometheus metrics for mcreview-api
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/domain"
)

type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	GraphQLOperationsTotal *prometheus.CounterVec
	WorkflowEventsTotal    *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// NewMetrics registers every metric on reg. Pass prometheus.NewRegistry()
// in tests so repeated construction does not collide.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	m := &Metrics{gatherer: reg}

	m.HTTPRequestsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcreview_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	m.HTTPRequestDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mcreview_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	m.HTTPRequestsInFlight = f.NewGauge(
		prometheus.GaugeOpts{
			Name: "mcreview_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	m.GraphQLOperationsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcreview_graphql_operations_total",
			Help: "GraphQL operations by field and result code",
		},
		[]string{"operation", "code"},
	)

	m.WorkflowEventsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcreview_workflow_events_total",
			Help: "Committed contract and rate workflow events",
		},
		[]string{"type"},
	)

	reg.MustRegister(prometheus.NewGoCollector())
	return m
}

func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// TrackInFlight bumps the in-flight gauge; call the returned func when the
// request completes.
func (m *Metrics) TrackInFlight() func() {
	m.HTTPRequestsInFlight.Inc()
	return m.HTTPRequestsInFlight.Dec
}

// RecordGraphQL counts one resolved root field. code is empty on success.
func (m *Metrics) RecordGraphQL(operation string, code domain.ErrorCode) {
	c := string(code)
	if c == "" {
		c = "OK"
	}
	m.GraphQLOperationsTotal.WithLabelValues(operation, c).Inc()
}

// Notify counts committed workflow events.
func (m *Metrics) Notify(_ context.Context, evt domain.Event) {
	m.WorkflowEventsTotal.WithLabelValues(string(evt.Type)).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
