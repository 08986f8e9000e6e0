package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/AfshinJalili/bankflow/libs/events"
	"github.com/AfshinJalili/bankflow/libs/kafka"
	"github.com/AfshinJalili/bankflow/libs/logging"
	"github.com/AfshinJalili/bankflow/services/customer/internal/storage"
	"github.com/IBM/sarama"
)

type fakeProvisioner struct {
	got []events.ApplicationApproved
	err error
}

func (f *fakeProvisioner) Provision(_ context.Context, evt events.ApplicationApproved) (storage.Customer, bool, error) {
	f.got = append(f.got, evt)
	return storage.Customer{ID: 5001}, f.err == nil, f.err
}

func message(t *testing.T, v any) *sarama.ConsumerMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return &sarama.ConsumerMessage{Topic: events.TopicApplicationApproved, Key: []byte("1001"), Value: raw}
}

func validEvent() events.ApplicationApproved {
	return events.ApplicationApproved{
		ApplicationID: 1001,
		Name:          events.Name{FirstName: "Ana", LastName: "Reyes"},
		IdentityType:  "PASSPORT",
		AccountType:   "SAVINGS",
		CurrencyType:  "USD",
		KYCStatus:     "VERIFIED",
		Envelope:      kafka.NewEnvelope(events.SourceAccountOpening),
	}
}

func TestApprovedConsumerProvisions(t *testing.T) {
	prov := &fakeProvisioner{}
	c := NewApprovedConsumer(prov, logging.Discard())

	if err := c.Router().HandleMessage(context.Background(), message(t, validEvent())); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(prov.got) != 1 || prov.got[0].ApplicationID != 1001 || prov.got[0].FirstName != "Ana" {
		t.Fatalf("unexpected provision calls %+v", prov.got)
	}
}

func TestApprovedConsumerDeadLettersMalformedPayloads(t *testing.T) {
	prov := &fakeProvisioner{}
	c := NewApprovedConsumer(prov, logging.Discard())

	bad := []*sarama.ConsumerMessage{
		{Topic: events.TopicApplicationApproved, Value: []byte(`{not json`)},
		{Topic: events.TopicApplicationApproved},
		message(t, events.ApplicationApproved{ApplicationID: 1001}),
	}
	for i, msg := range bad {
		if err := c.HandleMessage(context.Background(), msg); !kafka.IsDLQ(err) {
			t.Fatalf("case %d: expected dead-letter error, got %v", i, err)
		}
	}
	if len(prov.got) != 0 {
		t.Fatalf("malformed messages must not reach the provisioner")
	}
}

func TestApprovedConsumerPropagatesTransientErrors(t *testing.T) {
	boom := errors.New("db down")
	c := NewApprovedConsumer(&fakeProvisioner{err: boom}, logging.Discard())
	err := c.HandleMessage(context.Background(), message(t, validEvent()))
	if !errors.Is(err, boom) || kafka.IsDLQ(err) {
		t.Fatalf("expected retryable error, got %v", err)
	}
}
