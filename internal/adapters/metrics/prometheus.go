// Package metrics exposes the review console counters through Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"review-console/internal/domain"
)

const namespace = "review_console"

// Prometheus implements ports.Metrics on a private registry so tests can
// build as many instances as they like.
type Prometheus struct {
	registry *prometheus.Registry

	transitions  *prometheus.CounterVec
	accounts     *prometheus.CounterVec
	bulkItems    *prometheus.CounterVec
	undo         *prometheus.CounterVec
	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

func New() *Prometheus {
	m := &Prometheus{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "review",
				Name:      "transitions_total",
				Help:      "Remote status transitions by kind, source and outcome.",
			},
			[]string{"kind", "source", "outcome"},
		),
		accounts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "review",
				Name:      "accounts_provisioned_total",
				Help:      "Account creation attempts after approval.",
			},
			[]string{"outcome"},
		),
		bulkItems: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "bulk",
				Name:      "items_total",
				Help:      "Bulk transition items by kind and result.",
			},
			[]string{"kind", "result"},
		),
		undo: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "undo",
				Name:      "invocations_total",
				Help:      "Compensating actions executed from the undo stack.",
			},
			[]string{"outcome"},
		),
		httpInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "inflight_requests",
				Help:      "Current number of in-flight HTTP requests.",
			},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests handled.",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests.",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
			},
			[]string{"method", "route"},
		),
	}
	m.registry.MustRegister(
		m.transitions,
		m.accounts,
		m.bulkItems,
		m.undo,
		m.httpInFlight,
		m.httpRequests,
		m.httpDuration,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Prometheus) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Prometheus) TransitionCompleted(kind domain.TransitionKind, source domain.DecisionSource, outcome domain.DecisionOutcome) {
	m.transitions.WithLabelValues(string(kind), string(source), string(outcome)).Inc()
}

func (m *Prometheus) AccountProvisioned(outcome string) {
	m.accounts.WithLabelValues(outcome).Inc()
}

func (m *Prometheus) BulkCompleted(kind domain.TransitionKind, succeeded, failed int) {
	m.bulkItems.WithLabelValues(string(kind), "succeeded").Add(float64(succeeded))
	m.bulkItems.WithLabelValues(string(kind), "failed").Add(float64(failed))
}

func (m *Prometheus) UndoInvoked(outcome domain.DecisionOutcome) {
	m.undo.WithLabelValues(string(outcome)).Inc()
}

// Handler returns an HTTP handler exposing the registered collectors.
func (m *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency keyed by the echo route
// pattern, which keeps label cardinality bounded.
func (m *Prometheus) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Path() == "/metrics" {
				return next(c)
			}
			start := time.Now()
			m.httpInFlight.Inc()
			defer m.httpInFlight.Dec()

			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else if !c.Response().Committed {
					status = http.StatusInternalServerError
				}
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			m.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
