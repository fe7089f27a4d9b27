// Package metrics exposes Prometheus collectors for closes, lock refusals,
// after-close side effects and HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "messledger"

type Metrics struct {
	registry *prometheus.Registry

	closes        *prometheus.CounterVec
	closeDuration prometheus.Histogram
	lockRefusals  *prometheus.CounterVec
	archives      *prometheus.CounterVec
	statements    *prometheus.CounterVec
	requests      *prometheus.CounterVec
	requestTime   *prometheus.HistogramVec
}

// New builds the collectors on a private registry, alongside the Go runtime
// and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		closes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "month_close_total",
			Help:      "Month close attempts by outcome.",
		}, []string{"outcome"}),
		closeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "month_close_duration_seconds",
			Help:      "Time spent closing a month, including refused attempts.",
			Buckets:   prometheus.DefBuckets,
		}),
		lockRefusals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lock_refusals_total",
			Help:      "Writes refused because their month is locked.",
		}, []string{"entity"}),
		archives: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_archive_total",
			Help:      "Closed report archive uploads by status.",
		}, []string{"status"}),
		statements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "statement_email_total",
			Help:      "Member statement emails by status.",
		}, []string{"status"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		requestTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.closes,
		m.closeDuration,
		m.lockRefusals,
		m.archives,
		m.statements,
		m.requests,
		m.requestTime,
	)
	return m
}

func (m *Metrics) ObserveClose(outcome string, elapsed time.Duration) {
	m.closes.WithLabelValues(outcome).Inc()
	m.closeDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) LockRefused(entity string) {
	m.lockRefusals.WithLabelValues(entity).Inc()
}

func (m *Metrics) ObserveArchive(status string) {
	m.archives.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveStatement(status string) {
	m.statements.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestTime.WithLabelValues(route).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
