package consumer

import (
	"context"
	"log/slog"

	"github.com/AfshinJalili/bankflow/libs/events"
	"github.com/AfshinJalili/bankflow/libs/kafka"
	"github.com/IBM/sarama"
)

type Ledger interface {
	Seed(ctx context.Context, evt events.BankAccountCreated) (bool, error)
	ApplyStatus(ctx context.Context, evt events.BankAccountStatusChanged) (bool, error)
}

// AccountConsumer feeds the ledger from the bank account topics.
type AccountConsumer struct {
	ledger Ledger
	logger *slog.Logger
}

func NewAccountConsumer(ledger Ledger, logger *slog.Logger) *AccountConsumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountConsumer{ledger: ledger, logger: logger}
}

func (c *AccountConsumer) HandleCreated(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var evt events.BankAccountCreated
	if err := kafka.Decode(msg, &evt); err != nil {
		return err
	}
	if _, err := c.ledger.Seed(ctx, evt); err != nil {
		c.logger.Error("ledger seed failed",
			"account_number", evt.AccountNumber,
			"event_id", evt.EventID,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
		return err
	}
	return nil
}

func (c *AccountConsumer) HandleStatusChanged(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var evt events.BankAccountStatusChanged
	if err := kafka.Decode(msg, &evt); err != nil {
		return err
	}
	if _, err := c.ledger.ApplyStatus(ctx, evt); err != nil {
		c.logger.Error("ledger status projection failed",
			"account_number", evt.AccountNumber,
			"event_id", evt.EventID,
			"error", err,
		)
		return err
	}
	return nil
}

func (c *AccountConsumer) Router() kafka.Router {
	return kafka.Router{
		events.TopicBankAccountCreated:       kafka.HandlerFunc(c.HandleCreated),
		events.TopicBankAccountStatusChanged: kafka.HandlerFunc(c.HandleStatusChanged),
	}
}
