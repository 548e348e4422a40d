// Package monitoring exposes order-flow metrics and operator alerts.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the conversational order flow.
// A nil *Metrics is valid and records nothing.
//
// Metrics:
//   - pautapro_turns_total{intent} - turns handled per classified intent
//   - pautapro_orders_total{outcome} - order attempts by final outcome
//   - pautapro_resolve_duration_seconds{result} - entity resolution latency
//   - pautapro_backend_faults_total{stage} - record store faults by stage
//   - pautapro_sessions_active - sessions currently held in memory
type Metrics struct {
	TurnsTotal      *prometheus.CounterVec
	OrdersTotal     *prometheus.CounterVec
	ResolveDuration *prometheus.HistogramVec
	BackendFaults   *prometheus.CounterVec
	SessionsActive  prometheus.Gauge
}

// NewMetrics registers the collectors on reg. Each registry gets its own
// set, so tests can use a fresh prometheus.NewRegistry().
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		TurnsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pautapro_turns_total",
				Help: "Total number of conversation turns by intent",
			},
			[]string{"intent"},
		),
		OrdersTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pautapro_orders_total",
				Help: "Total number of order attempts by outcome",
			},
			[]string{"outcome"},
		),
		ResolveDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pautapro_resolve_duration_seconds",
				Help:    "Duration of entity resolution in seconds",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
			},
			[]string{"result"},
		),
		BackendFaults: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pautapro_backend_faults_total",
				Help: "Total number of record store faults by stage",
			},
			[]string{"stage"},
		),
		SessionsActive: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "pautapro_sessions_active",
				Help: "Current number of sessions held in memory",
			},
		),
	}
}

// RecordTurn counts one handled turn.
func (m *Metrics) RecordTurn(intent string) {
	if m == nil {
		return
	}
	m.TurnsTotal.WithLabelValues(intent).Inc()
}

// RecordOrder counts one order attempt outcome.
func (m *Metrics) RecordOrder(outcome string) {
	if m == nil {
		return
	}
	m.OrdersTotal.WithLabelValues(outcome).Inc()
}

// ObserveResolve records how long a resolution took.
func (m *Metrics) ObserveResolve(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.ResolveDuration.WithLabelValues(result).Observe(d.Seconds())
}

// RecordBackendFault counts a store fault at stage.
func (m *Metrics) RecordBackendFault(stage string) {
	if m == nil {
		return
	}
	m.BackendFaults.WithLabelValues(stage).Inc()
}

// SetSessions sets the active session gauge.
func (m *Metrics) SetSessions(n int) {
	if m == nil {
		return
	}
	m.SessionsActive.Set(float64(n))
}
