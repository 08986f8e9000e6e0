package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/AfshinJalili/bankflow/libs/kafka"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
)

type Claimer interface {
	Claim(ctx context.Context, limit int, fn func(ctx context.Context, events []Event, mark Marker) error) error
}

type Metrics struct {
	Published *prometheus.CounterVec
	Failures  *prometheus.CounterVec
}

func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		Published: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "outbox_published_total",
				Help: "Outbox events relayed to Kafka.",
			},
			[]string{"topic"},
		),
		Failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "outbox_publish_failures_total",
				Help: "Outbox relay publish failures.",
			},
			[]string{"topic"},
		),
	}
	registry.MustRegister(m.Published, m.Failures)
	return m
}

type Relay struct {
	claimer   Claimer
	publisher kafka.Publisher
	batchSize int
	logger    *slog.Logger
	metrics   *Metrics
}

func NewRelay(claimer Claimer, publisher kafka.Publisher, batchSize int, logger *slog.Logger, metrics *Metrics) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Relay{
		claimer:   claimer,
		publisher: publisher,
		batchSize: batchSize,
		logger:    logger,
		metrics:   metrics,
	}
}

// RelayOnce publishes one batch. The batch stops at the first failure so a
// later event is never published ahead of an earlier one; the failed event is
// retried on the next run.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	published := 0
	err := r.claimer.Claim(ctx, r.batchSize, func(ctx context.Context, events []Event, mark Marker) error {
		for _, e := range events {
			_, _, pubErr := r.publisher.PublishJSON(ctx, e.Topic, e.Key, json.RawMessage(e.Payload))
			if pubErr != nil {
				if r.metrics != nil {
					r.metrics.Failures.WithLabelValues(e.Topic).Inc()
				}
				r.logger.Error("outbox publish failed", "id", e.ID, "topic", e.Topic, "key", e.Key, "attempts", e.Attempts+1, "error", pubErr)
				return mark.Failed(ctx, e.ID, pubErr)
			}
			if err := mark.Published(ctx, e.ID); err != nil {
				return fmt.Errorf("mark outbox %d published: %w", e.ID, err)
			}
			if r.metrics != nil {
				r.metrics.Published.WithLabelValues(e.Topic).Inc()
			}
			published++
		}
		return nil
	})
	return published, err
}

// Start runs RelayOnce on a cron schedule (for example "@every 1s") until
// ctx is cancelled. The returned func waits for a running batch to finish.
func (r *Relay) Start(ctx context.Context, schedule string) (func(), error) {
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithSeconds(),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := c.AddFunc(schedule, func() {
		if ctx.Err() != nil {
			return
		}
		if n, err := r.RelayOnce(ctx); err != nil {
			r.logger.Error("outbox relay failed", "error", err)
		} else if n > 0 {
			r.logger.Debug("outbox relayed", "count", n)
		}
	}); err != nil {
		return nil, fmt.Errorf("schedule outbox relay: %w", err)
	}
	c.Start()
	return func() { <-c.Stop().Done() }, nil
}
