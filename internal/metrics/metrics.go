// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"grocer-agent/internal/domain"
)

const namespace = "grocer"

// Metrics owns a private registry so tests and multiple instances do not
// collide on the global one.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests    *prometheus.CounterVec
	classifications *prometheus.CounterVec
	stepFailures    *prometheus.CounterVec
	modelRetries    *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by method, route pattern and status code",
			},
			[]string{"method", "route", "status"},
		),
		classifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "classifications_total",
				Help:      "Chat messages by classified intent",
			},
			[]string{"category"},
		),
		stepFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pipeline_step_failures_total",
				Help:      "Degraded chat pipeline steps",
			},
			[]string{"step"},
		),
		modelRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "model_call_retries_total",
				Help:      "Retried model calls by target",
			},
			[]string{"target"},
		),
	}
	m.registry.MustRegister(
		m.httpRequests,
		m.classifications,
		m.stepFailures,
		m.modelRetries,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveCategory(c domain.Category) {
	m.classifications.WithLabelValues(c.String()).Inc()
}

func (m *Metrics) ObserveStepFailure(step string) {
	m.stepFailures.WithLabelValues(step).Inc()
}

// OnRetry matches usecase.RetryPolicy.OnRetry.
func (m *Metrics) OnRetry(target string, _ error, _ time.Duration) {
	m.modelRetries.WithLabelValues(target).Inc()
}

// ObserveRequest counts one served request. route should be the matched
// pattern, not the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveRequest(method, route string, status int) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
