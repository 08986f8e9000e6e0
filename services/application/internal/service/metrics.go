package service

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	Created     *prometheus.CounterVec
	Transitions *prometheus.CounterVec
}

func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		Created: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "applications_created_total",
				Help: "Account-opening applications received.",
			},
			[]string{"status"},
		),
		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "application_transitions_total",
				Help: "Application lifecycle transitions attempted.",
			},
			[]string{"action", "status"},
		),
	}
	registry.MustRegister(m.Created, m.Transitions)
	return m
}

func (m *Metrics) created(status string) {
	if m == nil {
		return
	}
	m.Created.WithLabelValues(status).Inc()
}

func (m *Metrics) transition(action, status string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(action, status).Inc()
}
