package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	Transactions   *prometheus.CounterVec
	Seeds          *prometheus.CounterVec
	AppendDuration *prometheus.HistogramVec
	BalanceLookups *prometheus.CounterVec
}

func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		Transactions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_transactions_total",
				Help: "Deposits and withdrawals by outcome.",
			},
			[]string{"type", "status"},
		),
		Seeds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_seeds_total",
				Help: "Account registrations from bank-account-created.",
			},
			[]string{"status"},
		),
		AppendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledger_append_duration_seconds",
				Help:    "Ledger append duration in seconds, lock wait included.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"type"},
		),
		BalanceLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_balance_lookups_total",
				Help: "Total balance lookups.",
			},
			[]string{"status"},
		),
	}

	registry.MustRegister(m.Transactions, m.Seeds, m.AppendDuration, m.BalanceLookups)
	return m
}

func (m *Metrics) transaction(kind, status string, took time.Duration) {
	if m == nil {
		return
	}
	m.Transactions.WithLabelValues(kind, status).Inc()
	m.AppendDuration.WithLabelValues(kind).Observe(took.Seconds())
}

func (m *Metrics) seed(status string) {
	if m == nil {
		return
	}
	m.Seeds.WithLabelValues(status).Inc()
}

func (m *Metrics) balanceLookup(status string) {
	if m == nil {
		return
	}
	m.BalanceLookups.WithLabelValues(status).Inc()
}
