package service

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	Sent      *prometheus.CounterVec
	Processed *prometheus.CounterVec
}

func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		Sent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifications_sent_total",
				Help: "Delivery attempts per channel by outcome.",
			},
			[]string{"channel", "status"},
		),
		Processed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifications_processed_total",
				Help: "bank-account-created events handled by the dispatcher.",
			},
			[]string{"status"},
		),
	}
	registry.MustRegister(m.Sent, m.Processed)
	return m
}

func (m *Metrics) sent(channel, status string) {
	if m == nil {
		return
	}
	m.Sent.WithLabelValues(channel, status).Inc()
}

func (m *Metrics) processed(status string) {
	if m == nil {
		return
	}
	m.Processed.WithLabelValues(status).Inc()
}
