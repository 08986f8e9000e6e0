package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/AfshinJalili/bankflow/libs/events"
	"github.com/AfshinJalili/bankflow/libs/kafka"
	"github.com/AfshinJalili/bankflow/services/notification/internal/notifier"
	"github.com/AfshinJalili/bankflow/services/notification/internal/storage"
)

type Store interface {
	UpsertContact(ctx context.Context, c storage.Contact) error
	Contact(ctx context.Context, customerID int64) (storage.Contact, error)
	Claim(ctx context.Context, draft storage.Audit) (storage.Audit, bool, error)
	RecordChannel(ctx context.Context, eventID string, ch storage.Channel, sent bool, detail string) error
	Complete(ctx context.Context, eventID string) error
	ListByCustomer(ctx context.Context, customerID int64) ([]storage.Audit, error)
}

// Dispatcher sends the welcome messages for new bank accounts and keeps one
// audit row per event.
type Dispatcher struct {
	store    Store
	notifier notifier.Notifier
	logger   *slog.Logger
	metrics  *Metrics
}

func NewDispatcher(store Store, n notifier.Notifier, logger *slog.Logger, metrics *Metrics) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{store: store, notifier: n, logger: logger, metrics: metrics}
}

// RecordContact keeps the local contact copy current.
func (d *Dispatcher) RecordContact(ctx context.Context, evt events.CustomerAccountCreated) error {
	err := d.store.UpsertContact(ctx, storage.Contact{
		CustomerID:  evt.CustomerID,
		FirstName:   evt.FirstName,
		LastName:    evt.LastName,
		Email:       evt.Email,
		PhoneNumber: evt.PhoneNumber,
	})
	if err != nil {
		return err
	}
	d.logger.Debug("contact recorded", "customer_id", evt.CustomerID, "event_id", evt.EventID)
	return nil
}

// AccountCreated delivers the welcome email and SMS for evt. It returns
// sent=false when the event was already completed. Channels already marked
// sent by an earlier attempt are not sent again. An event whose customer
// contact has not arrived yet is still audited, with each channel recorded
// as having no address.
func (d *Dispatcher) AccountCreated(ctx context.Context, evt events.BankAccountCreated) (bool, error) {
	view := newWelcomeView(evt)
	body, err := render(welcomeEmail, view)
	if err != nil {
		d.metrics.processed("error")
		return false, kafka.DLQ(fmt.Errorf("render email: %w", err), "validation")
	}
	sms, err := render(welcomeSMS, view)
	if err != nil {
		d.metrics.processed("error")
		return false, kafka.DLQ(fmt.Errorf("render sms: %w", err), "validation")
	}

	contact, err := d.store.Contact(ctx, evt.CustomerID)
	if err != nil {
		if !errors.Is(err, storage.ErrContactNotFound) {
			d.metrics.processed("error")
			return false, err
		}
		d.logger.Warn("no contact for customer", "customer_id", evt.CustomerID, "event_id", evt.EventID)
		contact = storage.Contact{CustomerID: evt.CustomerID}
	}

	audit, claimed, err := d.store.Claim(ctx, storage.Audit{
		EventID:          evt.EventID,
		CustomerID:       evt.CustomerID,
		AccountNumber:    evt.AccountNumber,
		NotificationType: storage.TypeAccountCreated,
		EmailAddress:     contact.Email,
		MobileNumber:     contact.PhoneNumber,
	})
	if err != nil {
		d.metrics.processed("error")
		return false, err
	}
	if !claimed {
		d.metrics.processed("duplicate")
		d.logger.Info("notification already sent", "event_id", evt.EventID, "account_number", evt.AccountNumber)
		return false, nil
	}

	if !audit.Sent(storage.ChannelEmail) {
		sendErr := d.notifier.SendEmail(ctx, audit.EmailAddress, welcomeSubject, body)
		if err := d.record(ctx, audit, storage.ChannelEmail, sendErr); err != nil {
			return false, err
		}
	}
	if !audit.Sent(storage.ChannelSMS) {
		sendErr := d.notifier.SendSMS(ctx, audit.MobileNumber, sms)
		if err := d.record(ctx, audit, storage.ChannelSMS, sendErr); err != nil {
			return false, err
		}
	}

	if err := d.store.Complete(ctx, evt.EventID); err != nil {
		d.metrics.processed("error")
		return false, err
	}
	d.metrics.processed("completed")
	d.logger.Info("notifications processed",
		"event_id", evt.EventID,
		"account_number", evt.AccountNumber,
		"customer_id", evt.CustomerID,
		"attempt", audit.Attempts,
	)
	return true, nil
}

// record persists one channel outcome. Delivery failures are soft: they are
// stored on the audit row and never fail the event.
func (d *Dispatcher) record(ctx context.Context, audit storage.Audit, ch storage.Channel, sendErr error) error {
	detail := ""
	switch {
	case sendErr == nil:
		d.metrics.sent(string(ch), "sent")
	case errors.Is(sendErr, notifier.ErrNoAddress):
		detail = sendErr.Error()
		d.metrics.sent(string(ch), "no_address")
		d.logger.Warn("no address for channel", "channel", ch, "customer_id", audit.CustomerID)
	default:
		detail = sendErr.Error()
		d.metrics.sent(string(ch), "failed")
		d.logger.Error("notification delivery failed", "channel", ch, "customer_id", audit.CustomerID, "event_id", audit.EventID, "error", sendErr)
	}
	return d.store.RecordChannel(ctx, audit.EventID, ch, sendErr == nil, detail)
}

func (d *Dispatcher) ListByCustomer(ctx context.Context, customerID int64) ([]storage.Audit, error) {
	return d.store.ListByCustomer(ctx, customerID)
}
