// Package metrics exposes Prometheus collectors for the relay.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tg_relay"

// Metrics is safe to use as a nil pointer; every recorder is then a no-op.
type Metrics struct {
	registry *prometheus.Registry

	apiResponseTime  *prometheus.HistogramVec
	apiErrorCounter  *prometheus.CounterVec
	platformCallTime *prometheus.HistogramVec
	platformErrors   *prometheus.CounterVec
	previewFailures  prometheus.Counter
	sessionsSaved    *prometheus.CounterVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,
		apiResponseTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "response_time_seconds",
			Help:      "HTTP response time by route",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"route"}),
		apiErrorCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "errors_total",
			Help:      "HTTP responses with status >= 400",
		}, []string{"method", "route", "status"}),
		platformCallTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "telegram",
			Name:      "unit_of_work_seconds",
			Help:      "Duration of one scoped Telegram connection",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 90},
		}, []string{"flow"}),
		platformErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telegram",
			Name:      "errors_total",
			Help:      "Failed Telegram units of work by flow and error code",
		}, []string{"flow", "code"}),
		previewFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telegram",
			Name:      "preview_failures_total",
			Help:      "Participant previews downgraded to an empty list",
		}),
		sessionsSaved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "sessions_saved_total",
			Help:      "Session tokens written to the store by flow",
		}, []string{"flow"}),
	}

	registry.MustRegister(
		m.apiResponseTime,
		m.apiErrorCounter,
		m.platformCallTime,
		m.platformErrors,
		m.previewFailures,
		m.sessionsSaved,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveResponse(route string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.apiResponseTime.WithLabelValues(route).Observe(elapsed.Seconds())
}

func (m *Metrics) APIErrorInc(method, route string, status int) {
	if m == nil {
		return
	}
	m.apiErrorCounter.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

func (m *Metrics) PlatformTimer(flow string) *prometheus.Timer {
	if m == nil {
		return prometheus.NewTimer(nil)
	}
	return prometheus.NewTimer(m.platformCallTime.WithLabelValues(flow))
}

func (m *Metrics) PlatformErrorInc(flow, code string) {
	if m == nil {
		return
	}
	m.platformErrors.WithLabelValues(flow, code).Inc()
}

func (m *Metrics) PreviewFailureInc() {
	if m == nil {
		return
	}
	m.previewFailures.Inc()
}

func (m *Metrics) SessionSavedInc(flow string) {
	if m == nil {
		return
	}
	m.sessionsSaved.WithLabelValues(flow).Inc()
}
