// Package metrics exposes Prometheus metrics for backend calls, checklist
// fallbacks and recorded answers.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/0xcro3dile/reqcheck/internal/adapters/transport"
	"github.com/0xcro3dile/reqcheck/internal/domain/entities"
)

const namespace = "reqcheck"

// Call outcomes.
const (
	OutcomeOK        = "ok"
	OutcomeTransient = "transient"
	OutcomeFatal     = "fatal"
	OutcomeCanceled  = "canceled"
)

// Metrics holds the collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	backendCalls    *prometheus.CounterVec
	backendDuration *prometheus.HistogramVec
	fallbacks       prometheus.Counter
	answers         *prometheus.CounterVec
}

// New creates the collectors and registers them, plus the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		backendCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_calls_total",
			Help:      "Calls to generation, embedding and search backends.",
		}, []string{"backend", "outcome"}),
		backendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_call_duration_seconds",
			Help:      "Backend call latency, retries included.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"backend"}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checklist_fallbacks_total",
			Help:      "Backend outputs replaced by the fallback checklist.",
		}),
		answers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_total",
			Help:      "Recorded checklist answers by status.",
		}, []string{"status"}),
	}
	m.registry.MustRegister(
		m.backendCalls,
		m.backendDuration,
		m.fallbacks,
		m.answers,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveCall records one backend call.
func (m *Metrics) ObserveCall(backend string, start time.Time, err error) {
	m.backendCalls.WithLabelValues(backend, Outcome(err)).Inc()
	m.backendDuration.WithLabelValues(backend).Observe(time.Since(start).Seconds())
}

// FallbackHook counts checklist fallbacks. Pass it to checklist.WithFallbackHook.
func (m *Metrics) FallbackHook() func(error) {
	return func(error) { m.fallbacks.Inc() }
}

// AnswerHook counts recorded answers. Pass it as AnswerConfig.OnAnswer.
func (m *Metrics) AnswerHook() func(entities.AnswerStatus) {
	return func(s entities.AnswerStatus) { m.answers.WithLabelValues(string(s)).Inc() }
}

// Outcome classifies a call error for the outcome label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCanceled
	case transport.IsTransient(err):
		return OutcomeTransient
	default:
		return OutcomeFatal
	}
}
