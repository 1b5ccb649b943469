package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/liamcoop/rulebuilder/internal/logger"
	"github.com/liamcoop/rulebuilder/rules"
)

const namespace = "rulebuilder"

// Metrics holds the collectors of one server. Each server owns its registry
// so tests can build servers side by side.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	merges        *prometheus.CounterVec
	ruleStatus    *prometheus.CounterVec
	validationErr *prometheus.CounterVec
}

// NewMetrics registers the server collectors plus the logger counters.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"method", "route"}),
		merges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_merges_total",
			Help:      "Rule merges by outcome (created, updated, rejected, error)",
		}, []string{"outcome"}),
		ruleStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_status_total",
			Help:      "Status assigned by successful merges",
		}, []string{"status"}),
		validationErr: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_errors_total",
			Help:      "Validation errors reported to callers, by code",
		}, []string{"code"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests, m.httpDuration, m.merges, m.ruleStatus, m.validationErr,
	)

	for _, c := range []struct {
		name    string
		counter interface{ Load() int64 }
	}{
		{"log_errors_total", &logger.TotalErrors},
		{"log_warnings_total", &logger.TotalWarnings},
		{"http_5xx_total", &logger.Total5xxErrors},
		{"http_4xx_total", &logger.Total4xxErrors},
		{"upstream_failures_total", &logger.TotalUpstreamFails},
		{"degraded_results_total", &logger.DegradedResults},
		{"slow_requests_total", &logger.SlowRequests},
	} {
		counter := c.counter
		reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      c.name,
			Help:      "Process-wide counter maintained by the logger",
		}, func() float64 { return float64(counter.Load()) }))
	}
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request counts and latency by route pattern, and
// counts responses slower than slow.
func (m *Metrics) Middleware(slow time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			elapsed := time.Since(start)
			m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).Inc()
			m.httpDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())
			if slow > 0 && elapsed > slow {
				logger.WarnSlowRequest()
			}
		})
	}
}

func (m *Metrics) observeMerge(res *rules.MergeResult, err error) {
	switch {
	case err != nil:
		m.merges.WithLabelValues("error").Inc()
	case !res.Success:
		m.merges.WithLabelValues("rejected").Inc()
	case res.Created:
		m.merges.WithLabelValues("created").Inc()
	default:
		m.merges.WithLabelValues("updated").Inc()
	}
	if err == nil && res.Success && res.Rule != nil {
		m.ruleStatus.WithLabelValues(string(res.Rule.Meta.Status)).Inc()
	}
}

func (m *Metrics) observeValidation(errs rules.ValidationErrors) {
	for _, e := range errs {
		m.validationErr.WithLabelValues(e.Code).Inc()
	}
}
