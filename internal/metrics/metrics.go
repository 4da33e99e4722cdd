// Package metrics bundles the Prometheus collectors exported by the bot.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry           *prometheus.Registry
	eventsTotal        *prometheus.CounterVec
	commandsTotal      *prometheus.CounterVec
	gateRejections     *prometheus.CounterVec
	moderationOutcomes *prometheus.CounterVec
	handlerFailures    *prometheus.CounterVec
	gatewayReconnects  prometheus.Counter
	gatewayDrops       *prometheus.CounterVec
	sendsThrottled     prometheus.Counter
	requestsTotal      *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	rateLimited        prometheus.Counter
	historyWriteErrors prometheus.Counter
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ovl",
			Name:      "events_total",
			Help:      "Inbound gateway events by kind",
		}, []string{"kind"}),
		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ovl",
			Name:      "commands_total",
			Help:      "Commands invoked by name and outcome",
		}, []string{"command", "outcome"}),
		gateRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ovl",
			Name:      "gate_rejections_total",
			Help:      "Command invocations stopped by an authorization gate",
		}, []string{"gate"}),
		moderationOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ovl",
			Name:      "moderation_outcomes_total",
			Help:      "Moderation rule outcomes by rule and status",
		}, []string{"rule", "status"}),
		handlerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ovl",
			Name:      "handler_failures_total",
			Help:      "Command handlers that returned an error or panicked",
		}, []string{"command"}),
		gatewayReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ovl",
			Name:      "gateway_reconnects_total",
			Help:      "Gateway connection attempts after a failure",
		}),
		gatewayDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ovl",
			Name:      "gateway_drops_total",
			Help:      "Gateway frames dropped by reason",
		}, []string{"reason"}),
		sendsThrottled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ovl",
			Name:      "sends_throttled_total",
			Help:      "Outbound actions delayed by the send limiter",
		}),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ovl",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests received",
		}, []string{"route", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ovl",
			Name:      "http_request_duration_seconds",
			Help:      "Histogram of HTTP request durations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ovl",
			Name:      "http_rate_limited_total",
			Help:      "Number of HTTP requests rejected due to rate limiting",
		}),
		historyWriteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ovl",
			Name:      "history_write_errors_total",
			Help:      "Message history batches that failed to persist",
		}),
	}

	registry.MustRegister(
		m.eventsTotal,
		m.commandsTotal,
		m.gateRejections,
		m.moderationOutcomes,
		m.handlerFailures,
		m.gatewayReconnects,
		m.gatewayDrops,
		m.sendsThrottled,
		m.requestsTotal,
		m.requestDuration,
		m.rateLimited,
		m.historyWriteErrors,
	)
	return m
}

// Handler returns an HTTP handler exposing the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) IncEvent(kind string) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncCommand(command, outcome string) {
	if m == nil {
		return
	}
	m.commandsTotal.WithLabelValues(command, outcome).Inc()
}

func (m *Metrics) IncGateRejection(gate string) {
	if m == nil {
		return
	}
	m.gateRejections.WithLabelValues(gate).Inc()
}

func (m *Metrics) IncModeration(rule, status string) {
	if m == nil {
		return
	}
	m.moderationOutcomes.WithLabelValues(rule, status).Inc()
}

func (m *Metrics) IncHandlerFailure(command string) {
	if m == nil {
		return
	}
	m.handlerFailures.WithLabelValues(command).Inc()
}

func (m *Metrics) IncGatewayReconnect() {
	if m == nil {
		return
	}
	m.gatewayReconnects.Inc()
}

func (m *Metrics) IncGatewayDrop(reason string) {
	if m == nil {
		return
	}
	m.gatewayDrops.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncSendThrottled() {
	if m == nil {
		return
	}
	m.sendsThrottled.Inc()
}

// ObserveRequest records timing and status information.
func (m *Metrics) ObserveRequest(route, method string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route, method).Observe(dur.Seconds())
}

func (m *Metrics) IncRateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

func (m *Metrics) IncHistoryWriteErrors() {
	if m == nil {
		return
	}
	m.historyWriteErrors.Inc()
}
