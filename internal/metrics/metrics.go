// Package metrics exposes Prometheus instrumentation for rentdesk. Every
// method is safe on a nil *Metrics so components can run uninstrumented.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rentdesk"

// Chat paths through the orchestrator.
const (
	PathConversational = "conversational"
	PathTools          = "tools"
	PathDirect         = "direct"
	PathError          = "error"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	registry *prometheus.Registry

	// Orchestrator
	ChatsTotal        *prometheus.CounterVec
	ChatDuration      *prometheus.HistogramVec
	ModelCallDuration *prometheus.HistogramVec
	ModelCallErrors   *prometheus.CounterVec
	CatalogSize       prometheus.Gauge
	CatalogSelected   prometheus.Histogram

	// Tools
	ToolInvocationsTotal   *prometheus.CounterVec
	ToolInvocationDuration *prometheus.HistogramVec

	// Sessions
	SessionsActive prometheus.Gauge
	SessionsSwept  prometheus.Counter

	// HTTP API
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates and registers all metrics on a private registry, along with
// the Go runtime and process collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		ChatsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chats_total",
				Help:      "Total number of chat messages handled, by path",
			},
			[]string{"path"},
		),
		ChatDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "chat_duration_seconds",
				Help:      "End-to-end duration of chat handling in seconds",
				Buckets:   []float64{.25, .5, 1, 2, 5, 10, 20, 40, 80},
			},
			[]string{"path"},
		),
		ModelCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "model_call_duration_seconds",
				Help:      "Duration of model calls in seconds, by stage",
				Buckets:   []float64{.1, .25, .5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "stage"},
		),
		ModelCallErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "model_call_errors_total",
				Help:      "Total number of failed model calls",
			},
			[]string{"provider", "stage"},
		),
		CatalogSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "tool_catalog_size",
				Help:      "Number of tools in the most recently fetched catalog",
			},
		),
		CatalogSelected: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tool_catalog_selected",
				Help:      "Number of tools offered to the model per decision",
				Buckets:   []float64{0, 1, 2, 5, 10, 15, 20},
			},
		),
		ToolInvocationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tool_invocations_total",
				Help:      "Total number of tool invocations, by outcome",
			},
			[]string{"tool", "status"},
		),
		ToolInvocationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tool_invocation_duration_seconds",
				Help:      "Duration of tool invocations in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"tool"},
		),
		SessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sessions_active",
				Help:      "Number of stored session contexts",
			},
		),
		SessionsSwept: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_swept_total",
				Help:      "Total number of expired sessions removed by the janitor",
			},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	registry.MustRegister(
		m.ChatsTotal,
		m.ChatDuration,
		m.ModelCallDuration,
		m.ModelCallErrors,
		m.CatalogSize,
		m.CatalogSelected,
		m.ToolInvocationsTotal,
		m.ToolInvocationDuration,
		m.SessionsActive,
		m.SessionsSwept,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveChat records one finished chat on the given path.
func (m *Metrics) ObserveChat(path string, d time.Duration) {
	if m == nil {
		return
	}
	m.ChatsTotal.WithLabelValues(path).Inc()
	m.ChatDuration.WithLabelValues(path).Observe(d.Seconds())
}

// ObserveModel records one model call.
func (m *Metrics) ObserveModel(provider, stage string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.ModelCallDuration.WithLabelValues(provider, stage).Observe(d.Seconds())
	if err != nil {
		m.ModelCallErrors.WithLabelValues(provider, stage).Inc()
	}
}

// ObserveCatalog records a fetched catalog size and the filtered selection size.
func (m *Metrics) ObserveCatalog(total, selected int) {
	if m == nil {
		return
	}
	m.CatalogSize.Set(float64(total))
	m.CatalogSelected.Observe(float64(selected))
}

// ObserveTool records one tool invocation. status is "success" or "error".
func (m *Metrics) ObserveTool(tool, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.ToolInvocationsTotal.WithLabelValues(tool, status).Inc()
	m.ToolInvocationDuration.WithLabelValues(tool).Observe(d.Seconds())
}

// SetActiveSessions sets the stored session gauge.
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.SessionsActive.Set(float64(n))
}

// AddSwept counts sessions removed by a sweep.
func (m *Metrics) AddSwept(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.SessionsSwept.Add(float64(n))
}

// ObserveHTTP records one HTTP request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
