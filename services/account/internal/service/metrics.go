package service

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	Opened         *prometheus.CounterVec
	StatusChanges  *prometheus.CounterVec
	DefaultedTypes prometheus.Counter
}

func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		Opened: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bank_accounts_opened_total",
				Help: "Bank account provisioning outcomes.",
			},
			[]string{"status"},
		),
		StatusChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bank_account_status_changes_total",
				Help: "Administrative account status changes by target status.",
			},
			[]string{"status"},
		),
		DefaultedTypes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bank_account_type_defaulted_total",
				Help: "Accounts opened with the default type because the requested one was unknown.",
			},
		),
	}
	registry.MustRegister(m.Opened, m.StatusChanges, m.DefaultedTypes)
	return m
}

func (m *Metrics) opened(status string) {
	if m == nil {
		return
	}
	m.Opened.WithLabelValues(status).Inc()
}

func (m *Metrics) statusChanged(status string) {
	if m == nil {
		return
	}
	m.StatusChanges.WithLabelValues(status).Inc()
}

func (m *Metrics) defaulted() {
	if m == nil {
		return
	}
	m.DefaultedTypes.Inc()
}
