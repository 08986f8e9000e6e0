package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AfshinJalili/bankflow/libs/trace"
	"github.com/IBM/sarama"
)

const maxRetryBackoff = 30 * time.Second

type MessageHandler interface {
	HandleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error
}

type HandlerFunc func(ctx context.Context, msg *sarama.ConsumerMessage) error

func (f HandlerFunc) HandleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	return f(ctx, msg)
}

// Router dispatches messages by topic so one consumer group can follow
// several topics.
type Router map[string]MessageHandler

func (r Router) HandleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	h, ok := r[msg.Topic]
	if !ok {
		return DLQ(fmt.Errorf("no handler for topic %s", msg.Topic), "unrouted")
	}
	return h.HandleMessage(ctx, msg)
}

func (r Router) Topics() []string {
	topics := make([]string, 0, len(r))
	for topic := range r {
		topics = append(topics, topic)
	}
	return topics
}

type Consumer struct {
	group        sarama.ConsumerGroup
	logger       *slog.Logger
	dlqPublisher Publisher
	dlqTopic     string
	maxAttempts  int
	backoff      time.Duration
	metrics      *ConsumerMetrics
	serviceName  string
}

func NewConsumer(brokers []string, groupID string, logger *slog.Logger) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers required")
	}
	if groupID == "" {
		return nil, fmt.Errorf("kafka consumer group required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V3_7_0_0
	cfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRange()}
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	cfg.Consumer.Offsets.AutoCommit.Enable = true
	cfg.Consumer.Group.Session.Timeout = 30 * time.Second
	cfg.Consumer.Group.Heartbeat.Interval = 3 * time.Second
	cfg.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer group: %w", err)
	}

	return &Consumer{
		group:       group,
		logger:      logger,
		maxAttempts: 5,
		backoff:     500 * time.Millisecond,
		serviceName: groupID,
	}, nil
}

// WithDLQ routes exhausted and non-retryable messages to topic.
func (c *Consumer) WithDLQ(publisher Publisher, topic string) *Consumer {
	c.dlqPublisher = publisher
	c.dlqTopic = topic
	return c
}

func (c *Consumer) WithRetry(maxAttempts int, backoff time.Duration) *Consumer {
	if maxAttempts > 0 {
		c.maxAttempts = maxAttempts
	}
	if backoff >= 0 {
		c.backoff = backoff
	}
	return c
}

func (c *Consumer) WithMetrics(m *ConsumerMetrics) *Consumer {
	c.metrics = m
	return c
}

func (c *Consumer) Consume(ctx context.Context, topics []string, handler MessageHandler) error {
	if handler == nil {
		return fmt.Errorf("message handler required")
	}

	cgHandler := &consumerGroupHandler{
		handler:      handler,
		logger:       c.logger,
		dlqPublisher: c.dlqPublisher,
		dlqTopic:     c.dlqTopic,
		retryTracker: newRetryTracker(c.maxAttempts, time.Hour),
		backoff:      c.backoff,
		metrics:      c.metrics,
		serviceName:  c.serviceName,
	}

	go func() {
		for err := range c.group.Errors() {
			c.logger.Error("kafka consumer group error", "error", err)
		}
	}()

	for {
		if err := c.group.Consume(ctx, topics, cgHandler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			c.logger.Error("kafka consume error", "error", err)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			time.Sleep(2 * time.Second)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (c *Consumer) Close() error {
	if c.group == nil {
		return nil
	}
	return c.group.Close()
}

type consumerGroupHandler struct {
	handler      MessageHandler
	logger       *slog.Logger
	dlqPublisher Publisher
	dlqTopic     string
	retryTracker *retryTracker
	backoff      time.Duration
	metrics      *ConsumerMetrics
	serviceName  string
}

func (h *consumerGroupHandler) Setup(_ sarama.ConsumerGroupSession) error   { return nil }
func (h *consumerGroupHandler) Cleanup(_ sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim handles one partition. A message is retried in place, so
// nothing behind it on the partition is processed until it either succeeds
// or is dead-lettered.
func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		if !h.process(session, msg) {
			return nil
		}
	}
	return nil
}

func (h *consumerGroupHandler) process(session sarama.ConsumerGroupSession, msg *sarama.ConsumerMessage) bool {
	ctx := session.Context()
	key := messageKey(msg)

	for {
		err := h.handle(ctx, msg)
		if err == nil {
			h.retryTracker.Clear(key)
			h.metrics.consumed(msg.Topic, "success")
			session.MarkMessage(msg, "")
			return true
		}

		attempts := h.retryTracker.Record(key)
		var dlqErr *DLQError
		if !errors.As(err, &dlqErr) && attempts >= h.retryTracker.maxAttempts {
			dlqErr = &DLQError{Err: err, Reason: "max_attempts"}
		}

		if dlqErr != nil {
			if pubErr := h.deadLetter(ctx, msg, dlqErr, attempts); pubErr != nil {
				h.logger.Error("dead letter publish failed", "topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "error", pubErr)
				if !h.wait(ctx, attempts) {
					return false
				}
				continue
			}
			h.retryTracker.Clear(key)
			h.metrics.consumed(msg.Topic, "dead_lettered")
			session.MarkMessage(msg, "")
			return true
		}

		h.logger.Warn("kafka message handler error, retrying",
			"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset,
			"attempt", attempts, "max_attempts", h.retryTracker.maxAttempts, "error", err)
		h.metrics.retried(msg.Topic)
		if !h.wait(ctx, attempts) {
			return false
		}
	}
}

func (h *consumerGroupHandler) handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	if h.serviceName == "" {
		return h.handler.HandleMessage(ctx, msg)
	}
	ctx, span := trace.StartConsumerSpan(ctx, h.serviceName, msg)
	defer span.End()
	err := h.handler.HandleMessage(ctx, msg)
	if err != nil {
		span.RecordError(err)
	}
	return err
}

func (h *consumerGroupHandler) deadLetter(ctx context.Context, msg *sarama.ConsumerMessage, dlqErr *DLQError, attempts int) error {
	h.metrics.deadLettered(msg.Topic, dlqErr.Reason)
	if h.dlqPublisher == nil || h.dlqTopic == "" {
		h.logger.Error("dropping message without dead letter topic",
			"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "reason", dlqErr.Reason, "error", dlqErr.Err)
		return nil
	}
	h.logger.Error("dead lettering message",
		"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset,
		"reason", dlqErr.Reason, "attempts", attempts, "error", dlqErr.Err)
	payload := BuildDLQPayload(msg, dlqErr, attempts)
	_, _, err := h.dlqPublisher.PublishJSON(ctx, h.dlqTopic, payload.Key, payload)
	return err
}

func (h *consumerGroupHandler) wait(ctx context.Context, attempts int) bool {
	delay := h.backoff * time.Duration(attempts)
	if delay > maxRetryBackoff {
		delay = maxRetryBackoff
	}
	if delay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func messageKey(msg *sarama.ConsumerMessage) string {
	return fmt.Sprintf("%s/%d/%d", msg.Topic, msg.Partition, msg.Offset)
}
