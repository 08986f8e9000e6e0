package consumer

import (
	"context"
	"log/slog"

	"github.com/AfshinJalili/bankflow/libs/events"
	"github.com/AfshinJalili/bankflow/libs/kafka"
	"github.com/IBM/sarama"
)

type Dispatcher interface {
	AccountCreated(ctx context.Context, evt events.BankAccountCreated) (bool, error)
	RecordContact(ctx context.Context, evt events.CustomerAccountCreated) error
}

type Consumer struct {
	dispatcher Dispatcher
	logger     *slog.Logger
}

func NewConsumer(dispatcher Dispatcher, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{dispatcher: dispatcher, logger: logger}
}

func (c *Consumer) HandleAccountCreated(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var evt events.BankAccountCreated
	if err := kafka.Decode(msg, &evt); err != nil {
		return err
	}
	c.logger.Debug("bank account created received",
		"account_number", evt.AccountNumber,
		"customer_id", evt.CustomerID,
		"partition", msg.Partition,
		"offset", msg.Offset,
	)
	if _, err := c.dispatcher.AccountCreated(ctx, evt); err != nil {
		c.logger.Error("notification failed",
			"account_number", evt.AccountNumber,
			"event_id", evt.EventID,
			"error", err,
		)
		return err
	}
	return nil
}

func (c *Consumer) HandleCustomerCreated(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var evt events.CustomerAccountCreated
	if err := kafka.Decode(msg, &evt); err != nil {
		return err
	}
	if err := c.dispatcher.RecordContact(ctx, evt); err != nil {
		c.logger.Error("contact projection failed", "customer_id", evt.CustomerID, "error", err)
		return err
	}
	return nil
}

func (c *Consumer) Router() kafka.Router {
	return kafka.Router{
		events.TopicBankAccountCreated:     kafka.HandlerFunc(c.HandleAccountCreated),
		events.TopicCustomerAccountCreated: kafka.HandlerFunc(c.HandleCustomerCreated),
	}
}
