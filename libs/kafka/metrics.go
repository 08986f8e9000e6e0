package kafka

import "github.com/prometheus/client_golang/prometheus"

type ProducerMetrics struct {
	PublishTotal   *prometheus.CounterVec
	PublishLatency prometheus.Histogram
}

func NewProducerMetrics(registry *prometheus.Registry) *ProducerMetrics {
	m := &ProducerMetrics{
		PublishTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kafka_publish_total",
				Help: "Total Kafka publish attempts.",
			},
			[]string{"topic", "status"},
		),
		PublishLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "kafka_publish_latency_seconds",
				Help:    "Kafka publish latency in seconds.",
				Buckets: prometheus.DefBuckets,
			},
		),
	}

	registry.MustRegister(m.PublishTotal, m.PublishLatency)
	return m
}

type ConsumerMetrics struct {
	Consumed     *prometheus.CounterVec
	Retries      *prometheus.CounterVec
	DeadLettered *prometheus.CounterVec
}

func NewConsumerMetrics(registry *prometheus.Registry) *ConsumerMetrics {
	m := &ConsumerMetrics{
		Consumed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kafka_consume_total",
				Help: "Kafka messages completed, by outcome.",
			},
			[]string{"topic", "status"},
		),
		Retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kafka_consume_retries_total",
				Help: "Kafka handler retries.",
			},
			[]string{"topic"},
		),
		DeadLettered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kafka_dlq_total",
				Help: "Kafka messages routed to the dead letter topic.",
			},
			[]string{"topic", "reason"},
		),
	}
	registry.MustRegister(m.Consumed, m.Retries, m.DeadLettered)
	return m
}

func (m *ConsumerMetrics) consumed(topic, status string) {
	if m == nil {
		return
	}
	m.Consumed.WithLabelValues(topic, status).Inc()
}

func (m *ConsumerMetrics) retried(topic string) {
	if m == nil {
		return
	}
	m.Retries.WithLabelValues(topic).Inc()
}

func (m *ConsumerMetrics) deadLettered(topic, reason string) {
	if m == nil {
		return
	}
	m.DeadLettered.WithLabelValues(topic, reason).Inc()
}
