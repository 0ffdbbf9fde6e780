package service

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts engine outcomes by principal kind, operation and reason.
// A nil *Metrics discards observations.
type Metrics struct {
	RecoveryEvents *prometheus.CounterVec
	Logins         *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RecoveryEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fitzone_recovery_events_total",
				Help: "Verification and password recovery outcomes.",
			},
			[]string{"principal", "op", "outcome"},
		),
		Logins: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fitzone_logins_total",
				Help: "Login attempts by outcome.",
			},
			[]string{"principal", "outcome"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.RecoveryEvents, m.Logins)
	}
	return m
}

func (m *Metrics) observeRecovery(principal, op, outcome string) {
	if m == nil {
		return
	}
	m.RecoveryEvents.WithLabelValues(principal, op, outcome).Inc()
}

func (m *Metrics) observeLogin(principal, outcome string) {
	if m == nil {
		return
	}
	m.Logins.WithLabelValues(principal, outcome).Inc()
}
