// Package notifier delivers customer messages over email and SMS.
package notifier

import (
	"context"
	"errors"
)

// ErrNoAddress is returned when the recipient has no address for a channel.
var ErrNoAddress = errors.New("no address for channel")

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

type SMSSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

type Notifier interface {
	EmailSender
	SMSSender
}

// Channels pairs independent email and SMS adapters into a Notifier.
type Channels struct {
	Email EmailSender
	SMS   SMSSender
}

func (c Channels) SendEmail(ctx context.Context, to, subject, body string) error {
	if to == "" {
		return ErrNoAddress
	}
	return c.Email.SendEmail(ctx, to, subject, body)
}

func (c Channels) SendSMS(ctx context.Context, to, message string) error {
	if to == "" {
		return ErrNoAddress
	}
	return c.SMS.SendSMS(ctx, to, message)
}
