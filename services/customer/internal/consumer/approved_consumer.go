package consumer

import (
	"context"
	"log/slog"

	"github.com/AfshinJalili/bankflow/libs/events"
	"github.com/AfshinJalili/bankflow/libs/kafka"
	"github.com/AfshinJalili/bankflow/services/customer/internal/storage"
	"github.com/IBM/sarama"
)

type Provisioner interface {
	Provision(ctx context.Context, evt events.ApplicationApproved) (storage.Customer, bool, error)
}

// ApprovedConsumer provisions a customer for every application-approved
// event. Duplicates are skipped by the provisioner and committed.
type ApprovedConsumer struct {
	provisioner Provisioner
	logger      *slog.Logger
}

func NewApprovedConsumer(provisioner Provisioner, logger *slog.Logger) *ApprovedConsumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ApprovedConsumer{provisioner: provisioner, logger: logger}
}

func (c *ApprovedConsumer) HandleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var evt events.ApplicationApproved
	if err := kafka.Decode(msg, &evt); err != nil {
		return err
	}
	if _, _, err := c.provisioner.Provision(ctx, evt); err != nil {
		c.logger.Error("customer provisioning failed",
			"application_id", evt.ApplicationID,
			"event_id", evt.EventID,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
		return err
	}
	return nil
}

// Router binds the consumer to its topic.
func (c *ApprovedConsumer) Router() kafka.Router {
	return kafka.Router{events.TopicApplicationApproved: c}
}
