// Package metrics exposes Prometheus collectors for the chat console.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/weiawesome/marketplace-admin-chat/internal/domain"
)

var states = []domain.ConnectionState{
	domain.StateDisconnected,
	domain.StateConnecting,
	domain.StateConnected,
	domain.StateRetrying,
	domain.StateFailed,
}

// Metrics holds every collector on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	state         *prometheus.GaugeVec
	transitions   *prometheus.CounterVec
	reconnects    prometheus.Counter
	sends         *prometheus.CounterVec
	joinFailures  prometheus.Counter
	alerts        prometheus.Counter
	invalidations *prometheus.CounterVec
}

// New registers the console collectors under namespace.
func New(namespace string) *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.state = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "connection",
			Name:      "state",
			Help:      "1 for the current connection state, 0 otherwise",
		},
		[]string{"state"},
	)
	m.transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connection",
			Name:      "transitions_total",
			Help:      "Connection state transitions by target state",
		},
		[]string{"state"},
	)
	m.reconnects = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "connection",
		Name:      "reconnects_scheduled_total",
		Help:      "Reconnect attempts scheduled after a failure",
	})
	m.sends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "sends_total",
			Help:      "Resolved optimistic sends by result",
		},
		[]string{"result"},
	)
	m.joinFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "relay",
		Name:      "join_failures_total",
		Help:      "Conversation joins refused by the server",
	})
	m.alerts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "notifier",
		Name:      "alerts_total",
		Help:      "Alerts raised for incoming messages",
	})
	m.invalidations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "invalidations_total",
			Help:      "Cache invalidations signalled by scope",
		},
		[]string{"scope"},
	)

	m.registry.MustRegister(
		m.state, m.transitions, m.reconnects, m.sends, m.joinFailures, m.alerts, m.invalidations,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m.setState(domain.StateDisconnected)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) setState(current domain.ConnectionState) {
	for _, s := range states {
		v := 0.0
		if s == current {
			v = 1
		}
		m.state.WithLabelValues(s.String()).Set(v)
	}
}

func (m *Metrics) OnStateChange(_, next domain.ConnectionState) {
	m.setState(next)
	m.transitions.WithLabelValues(next.String()).Inc()
	if next == domain.StateRetrying {
		m.reconnects.Inc()
	}
}

func (m *Metrics) MessageSent(domain.PendingSend, string, time.Time) {
	m.sends.WithLabelValues("confirmed").Inc()
}

func (m *Metrics) MessageFailed(err *domain.SendError) {
	result := "rejected"
	if err.Err != nil {
		result = "aborted"
	}
	m.sends.WithLabelValues(result).Inc()
}

func (m *Metrics) JoinFailed(*domain.JoinError) {
	m.joinFailures.Inc()
}

// Invalidator is the cache sink being instrumented.
type Invalidator interface {
	Invalidate(key domain.CacheKey)
}

// Alerter is the alert sink being instrumented.
type Alerter interface {
	Alert(a domain.Alert)
}

// Invalidations counts keys passing through to inner.
func (m *Metrics) Invalidations(inner Invalidator) Invalidator {
	return countingInvalidator{inner: inner, m: m}
}

// Alerts counts alerts passing through to inner.
func (m *Metrics) Alerts(inner Alerter) Alerter {
	return countingAlerter{inner: inner, m: m}
}

type countingInvalidator struct {
	inner Invalidator
	m     *Metrics
}

func (c countingInvalidator) Invalidate(key domain.CacheKey) {
	c.m.invalidations.WithLabelValues(string(key.Scope)).Inc()
	c.inner.Invalidate(key)
}

type countingAlerter struct {
	inner Alerter
	m     *Metrics
}

func (c countingAlerter) Alert(a domain.Alert) {
	c.m.alerts.Inc()
	c.inner.Alert(a)
}
