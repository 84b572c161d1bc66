// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Prometheus instrumentation of the connection lifecycle.
// All Record methods are safe on a nil *Metrics.

package control

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "nvmf"

// Metrics owns a private Prometheus registry and the target's collectors.
type Metrics struct {
	registry *prometheus.Registry

	connectionsStarted   *prometheus.CounterVec
	connectionsActive    *prometheus.GaugeVec
	teardowns            *prometheus.CounterVec
	ticks                *prometheus.CounterVec
	transportErrors      prometheus.Counter
	registrationFailures prometheus.Counter
	sessionsActive       prometheus.Gauge
	sessionsDestroyed    prometheus.Counter
}

// NewMetrics creates and registers all collectors, plus the Go runtime and
// process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		connectionsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connection",
			Name:      "started_total",
			Help:      "Connections whose poller was registered.",
		}, []string{"kind"}),
		connectionsActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "connection",
			Name:      "active",
			Help:      "Connections currently polled.",
		}, []string{"kind"}),
		teardowns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connection",
			Name:      "teardowns_total",
			Help:      "Connection teardowns by kind and the state that triggered them.",
		}, []string{"kind", "reason"}),
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connection",
			Name:      "ticks_total",
			Help:      "Poll invocations.",
		}, []string{"kind"}),
		transportErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "poll_errors_total",
			Help:      "Fatal transport completion poll failures.",
		}),
		registrationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connection",
			Name:      "registration_failures_total",
			Help:      "Connections that could not register their poller.",
		}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "active",
			Help:      "Live sessions.",
		}),
		sessionsDestroyed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "destroyed_total",
			Help:      "Sessions destroyed after their last connection detached.",
		}),
	}
	m.registry.MustRegister(
		m.connectionsStarted,
		m.connectionsActive,
		m.teardowns,
		m.ticks,
		m.transportErrors,
		m.registrationFailures,
		m.sessionsActive,
		m.sessionsDestroyed,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the registry for an HTTP handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// TickCounter returns the per-kind tick counter so hot paths can cache it.
// A nil receiver yields a detached counter.
func (m *Metrics) TickCounter(kind string) prometheus.Counter {
	if m == nil {
		return prometheus.NewCounter(prometheus.CounterOpts{Name: "discard"})
	}
	return m.ticks.WithLabelValues(kind)
}

func (m *Metrics) ConnectionStarted(kind string) {
	if m == nil {
		return
	}
	m.connectionsStarted.WithLabelValues(kind).Inc()
	m.connectionsActive.WithLabelValues(kind).Inc()
}

// ConnectionClosed records a teardown. wasActive is false for connections
// that never started polling.
func (m *Metrics) ConnectionClosed(kind, reason string, wasActive bool) {
	if m == nil {
		return
	}
	m.teardowns.WithLabelValues(kind, reason).Inc()
	if wasActive {
		m.connectionsActive.WithLabelValues(kind).Dec()
	}
}

func (m *Metrics) TransportError() {
	if m == nil {
		return
	}
	m.transportErrors.Inc()
}

func (m *Metrics) RegistrationFailed() {
	if m == nil {
		return
	}
	m.registrationFailures.Inc()
}

func (m *Metrics) SessionCreated() {
	if m == nil {
		return
	}
	m.sessionsActive.Inc()
}

func (m *Metrics) SessionDestroyed() {
	if m == nil {
		return
	}
	m.sessionsActive.Dec()
	m.sessionsDestroyed.Inc()
}
