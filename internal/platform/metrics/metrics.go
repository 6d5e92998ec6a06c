// Copyright (c) 2026 Studio. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package metrics exposes the Prometheus collectors shared by the platform.

Collectors are grouped in a [Metrics] value bound to an explicit registerer, so
tests can use a private registry and the process uses the default one.

Every method is safe on a nil *Metrics, which lets components run without
instrumentation in unit tests.
*/
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "studio"

// Metrics holds every collector the service reports.
type Metrics struct {
	httpInFlight        prometheus.Gauge
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	storeFallbackTotal *prometheus.CounterVec
	rateLimitDecisions *prometheus.CounterVec
	authzDecisions     *prometheus.CounterVec
	revocationsTotal   *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them on registry.
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_in_flight_requests",
			Help:      "In-flight HTTP requests.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latencies in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		storeFallbackTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_fallback_total",
			Help:      "Operations served by the in-process store because the networked store failed.",
		}, []string{"store", "op"}),
		rateLimitDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ratelimit_decisions_total",
			Help:      "Rate limiter decisions by scope and outcome.",
		}, []string{"scope", "outcome"}),
		authzDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "authz_decisions_total",
			Help:      "Authorization gateway decisions by outcome.",
		}, []string{"outcome"}),
		revocationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "revocations_total",
			Help:      "Token revocations by kind.",
		}, []string{"kind"}),
		gatherer: registry,
	}

	registry.MustRegister(
		m.httpInFlight,
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.storeFallbackTotal,
		m.rateLimitDecisions,
		m.authzDecisions,
		m.revocationsTotal,
	)

	return m
}

// NewDefault registers the collectors with Go runtime and process collectors
// on a fresh registry. Used by the server entrypoint.
func NewDefault() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return New(registry)
}

// # Domain Counters

// StoreFallback records an operation absorbed by the fallback store.
func (m *Metrics) StoreFallback(store, op string) {
	if m == nil {
		return
	}
	m.storeFallbackTotal.WithLabelValues(store, op).Inc()
}

// RateLimitDecision records an allow/deny/blocked outcome for a scope.
func (m *Metrics) RateLimitDecision(scope, outcome string) {
	if m == nil {
		return
	}
	m.rateLimitDecisions.WithLabelValues(scope, outcome).Inc()
}

// AuthzDecision records an authorization outcome ("allowed" or a denial reason).
func (m *Metrics) AuthzDecision(outcome string) {
	if m == nil {
		return
	}
	m.authzDecisions.WithLabelValues(outcome).Inc()
}

// Revocation records a revoked token or subject.
func (m *Metrics) Revocation(kind string) {
	if m == nil {
		return
	}
	m.revocationsTotal.WithLabelValues(kind).Inc()
}

// # HTTP

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Instrument measures in-flight requests, totals and latency per chi route pattern.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	if m == nil {
		return next
	}

	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		start := time.Now()
		recorder := &statusWriter{ResponseWriter: writer, code: http.StatusOK}
		next.ServeHTTP(recorder, request)

		// Route patterns keep label cardinality bounded; raw paths would not.
		route := "unmatched"
		if routeContext := chi.RouteContext(request.Context()); routeContext != nil {
			if pattern := routeContext.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		status := strconv.Itoa(recorder.code)
		m.httpRequestDuration.WithLabelValues(request.Method, route, status).Observe(time.Since(start).Seconds())
		m.httpRequestsTotal.WithLabelValues(request.Method, route, status).Inc()
	})
}

// statusWriter captures the response code written by the handler.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
