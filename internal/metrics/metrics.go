// Package metrics exposes Prometheus instruments for the registration flow.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registration attempt outcomes.
const (
	OutcomeSuccess   = "success"
	OutcomeInvalid   = "invalid_input"
	OutcomeNotFound  = "not_found"
	OutcomeFull      = "capacity_exceeded"
	OutcomeDuplicate = "duplicate"
	OutcomeError     = "error"
)

// Metrics groups the collectors. A nil *Metrics is valid and records
// nothing, which keeps tests that do not care about metrics short.
type Metrics struct {
	registry *prometheus.Registry

	RegistrationAttempts *prometheus.CounterVec
	EventsCreated        prometheus.Counter
	RequestDuration      *prometheus.HistogramVec
}

// New creates the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		RegistrationAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventreg",
			Name:      "registration_attempts_total",
			Help:      "Registration attempts by outcome.",
		}, []string{"outcome"}),
		EventsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eventreg",
			Name:      "events_created_total",
			Help:      "Events created by administrators.",
		}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "eventreg",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	reg.MustRegister(
		m.RegistrationAttempts,
		m.EventsCreated,
		m.RequestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registration counts one registration attempt.
func (m *Metrics) Registration(outcome string) {
	if m == nil {
		return
	}
	m.RegistrationAttempts.WithLabelValues(outcome).Inc()
}

// EventCreated counts one created event.
func (m *Metrics) EventCreated() {
	if m == nil {
		return
	}
	m.EventsCreated.Inc()
}

// ObserveRequest records the latency of one HTTP request.
func (m *Metrics) ObserveRequest(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(method, route, status).Observe(d.Seconds())
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
