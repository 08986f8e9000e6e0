package service

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	Provisioned *prometheus.CounterVec
	Assignments *prometheus.CounterVec
}

func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		Provisioned: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "customers_provisioned_total",
				Help: "Customer provisioning outcomes for approved applications.",
			},
			[]string{"status"},
		),
		Assignments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "branch_assignments_total",
				Help: "Branch assignments by reason.",
			},
			[]string{"reason"},
		),
	}
	registry.MustRegister(m.Provisioned, m.Assignments)
	return m
}

func (m *Metrics) provisioned(status string) {
	if m == nil {
		return
	}
	m.Provisioned.WithLabelValues(status).Inc()
}

func (m *Metrics) assigned(reason string) {
	if m == nil {
		return
	}
	m.Assignments.WithLabelValues(reason).Inc()
}
