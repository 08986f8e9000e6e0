package consumer

import (
	"context"
	"log/slog"

	"github.com/AfshinJalili/bankflow/libs/events"
	"github.com/AfshinJalili/bankflow/libs/kafka"
	"github.com/AfshinJalili/bankflow/services/account/internal/storage"
	"github.com/IBM/sarama"
)

type Provisioner interface {
	Provision(ctx context.Context, evt events.CustomerAccountCreated) (storage.Account, bool, error)
}

type CustomerConsumer struct {
	provisioner Provisioner
	logger      *slog.Logger
}

func NewCustomerConsumer(provisioner Provisioner, logger *slog.Logger) *CustomerConsumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &CustomerConsumer{provisioner: provisioner, logger: logger}
}

func (c *CustomerConsumer) HandleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var evt events.CustomerAccountCreated
	if err := kafka.Decode(msg, &evt); err != nil {
		return err
	}
	if _, _, err := c.provisioner.Provision(ctx, evt); err != nil {
		c.logger.Error("bank account provisioning failed",
			"customer_id", evt.CustomerID,
			"event_id", evt.EventID,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
		return err
	}
	return nil
}

func (c *CustomerConsumer) Router() kafka.Router {
	return kafka.Router{events.TopicCustomerAccountCreated: c}
}
