package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/AfshinJalili/bankflow/libs/events"
	"github.com/AfshinJalili/bankflow/libs/kafka"
	"github.com/AfshinJalili/bankflow/libs/logging"
	"github.com/IBM/sarama"
)

type fakeDispatcher struct {
	accounts  []int64
	customers []int64
	err       error
}

func (f *fakeDispatcher) AccountCreated(_ context.Context, evt events.BankAccountCreated) (bool, error) {
	f.accounts = append(f.accounts, evt.AccountNumber)
	return f.err == nil, f.err
}

func (f *fakeDispatcher) RecordContact(_ context.Context, evt events.CustomerAccountCreated) error {
	f.customers = append(f.customers, evt.CustomerID)
	return f.err
}

func message(t *testing.T, topic string, v any) *sarama.ConsumerMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return &sarama.ConsumerMessage{Topic: topic, Value: raw}
}

func TestRouterDispatchesByTopic(t *testing.T) {
	d := &fakeDispatcher{}
	router := NewConsumer(d, logging.Discard()).Router()
	ctx := context.Background()

	customer := events.CustomerAccountCreated{
		CustomerID:    5001,
		ApplicationID: 1001,
		Contact:       events.Contact{Email: "ana@example.com"},
		Envelope:      kafka.NewEnvelope(events.SourceCustomerAccount),
	}
	if err := router.HandleMessage(ctx, message(t, events.TopicCustomerAccountCreated, customer)); err != nil {
		t.Fatalf("customer: %v", err)
	}
	account := events.BankAccountCreated{
		AccountNumber: 100001,
		CustomerID:    5001,
		Envelope:      kafka.NewEnvelope(events.SourceBankAccount),
	}
	if err := router.HandleMessage(ctx, message(t, events.TopicBankAccountCreated, account)); err != nil {
		t.Fatalf("account: %v", err)
	}
	if len(d.customers) != 1 || d.customers[0] != 5001 {
		t.Fatalf("unexpected customers %v", d.customers)
	}
	if len(d.accounts) != 1 || d.accounts[0] != 100001 {
		t.Fatalf("unexpected accounts %v", d.accounts)
	}
}

func TestMalformedMessageIsDeadLettered(t *testing.T) {
	d := &fakeDispatcher{}
	router := NewConsumer(d, logging.Discard()).Router()

	msg := &sarama.ConsumerMessage{Topic: events.TopicBankAccountCreated, Value: []byte("{not json")}
	if err := router.HandleMessage(context.Background(), msg); !kafka.IsDLQ(err) {
		t.Fatalf("expected DLQ error, got %v", err)
	}
	if len(d.accounts) != 0 {
		t.Fatal("dispatcher must not be called")
	}
}

func TestTransientErrorPropagates(t *testing.T) {
	d := &fakeDispatcher{err: errors.New("db down")}
	router := NewConsumer(d, logging.Discard()).Router()

	account := events.BankAccountCreated{
		AccountNumber: 100001,
		CustomerID:    5001,
		Envelope:      kafka.NewEnvelope(events.SourceBankAccount),
	}
	err := router.HandleMessage(context.Background(), message(t, events.TopicBankAccountCreated, account))
	if err == nil || kafka.IsDLQ(err) {
		t.Fatalf("expected retryable error, got %v", err)
	}
}
