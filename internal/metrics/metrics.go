// Package metrics defines the Prometheus collectors exposed on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the application collectors and their registry
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests       *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
	DetailReviews      *prometheus.CounterVec
	PeriodsArchived    prometheus.Counter
	WorkflowRejections *prometheus.CounterVec
}

// New registers all collectors on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "measure",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "measure",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		DetailReviews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "measure",
			Name:      "detail_reviews_total",
			Help:      "Measurement detail reviews by decision.",
		}, []string{"decision"}),
		PeriodsArchived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "measure",
			Name:      "periods_archived_total",
			Help:      "Periods archived manually or by the auto-archive job.",
		}),
		WorkflowRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "measure",
			Name:      "workflow_rejections_total",
			Help:      "Measurement workflow operations refused by a business rule.",
		}, []string{"reason"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequests,
		m.HTTPDuration,
		m.DetailReviews,
		m.PeriodsArchived,
		m.WorkflowRejections,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveReview counts a review decision
func (m *Metrics) ObserveReview(decision string) {
	if m == nil {
		return
	}
	m.DetailReviews.WithLabelValues(decision).Inc()
}

// ObserveArchived counts archived periods
func (m *Metrics) ObserveArchived(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.PeriodsArchived.Add(float64(n))
}

// ObserveRejection counts a workflow rule refusal
func (m *Metrics) ObserveRejection(reason string) {
	if m == nil {
		return
	}
	m.WorkflowRejections.WithLabelValues(reason).Inc()
}
