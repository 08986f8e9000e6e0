package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/AfshinJalili/bankflow/libs/events"
	"github.com/AfshinJalili/bankflow/libs/kafka"
	"github.com/AfshinJalili/bankflow/libs/logging"
	"github.com/AfshinJalili/bankflow/services/notification/internal/notifier"
	"github.com/AfshinJalili/bankflow/services/notification/internal/storage"
	"github.com/shopspring/decimal"
)

type memStore struct {
	mu       sync.Mutex
	contacts map[int64]storage.Contact
	audits   map[string]*storage.Audit
	order    []string
}

func newMemStore() *memStore {
	return &memStore{contacts: map[int64]storage.Contact{}, audits: map[string]*storage.Audit{}}
}

func (m *memStore) UpsertContact(_ context.Context, c storage.Contact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contacts[c.CustomerID] = c
	return nil
}

func (m *memStore) Contact(_ context.Context, id int64) (storage.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contacts[id]
	if !ok {
		return storage.Contact{}, storage.ErrContactNotFound
	}
	return c, nil
}

func (m *memStore) Claim(_ context.Context, draft storage.Audit) (storage.Audit, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.audits[draft.EventID]
	if !ok {
		draft.ID = int64(len(m.order) + 1)
		draft.Status = storage.StatusPending
		draft.Attempts = 1
		m.audits[draft.EventID] = &draft
		m.order = append(m.order, draft.EventID)
		return draft, true, nil
	}
	if a.Completed() {
		return *a, false, nil
	}
	a.Attempts++
	return *a, true, nil
}

func (m *memStore) RecordChannel(_ context.Context, eventID string, ch storage.Channel, sent bool, detail string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.audits[eventID]
	if !ok {
		return storage.ErrAuditNotFound
	}
	if ch == storage.ChannelEmail {
		a.EmailSent, a.EmailError = sent, detail
	} else {
		a.SMSSent, a.SMSError = sent, detail
	}
	return nil
}

func (m *memStore) Complete(_ context.Context, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.audits[eventID]
	if !ok {
		return storage.ErrAuditNotFound
	}
	now := time.Now()
	a.Status = storage.StatusCompleted
	a.SentAt = &now
	return nil
}

func (m *memStore) ListByCustomer(_ context.Context, id int64) ([]storage.Audit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storage.Audit
	for i := len(m.order) - 1; i >= 0; i-- {
		if a := m.audits[m.order[i]]; a.CustomerID == id {
			out = append(out, *a)
		}
	}
	return out, nil
}

type sent struct {
	to      string
	subject string
	body    string
}

type fakeChannel struct {
	mu     sync.Mutex
	err    error
	emails []sent
	sms    []sent
}

func (f *fakeChannel) SendEmail(_ context.Context, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.emails = append(f.emails, sent{to: to, subject: subject, body: body})
	return nil
}

func (f *fakeChannel) SendSMS(_ context.Context, to, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sms = append(f.sms, sent{to: to, body: message})
	return nil
}

// flakyStore fails the first Complete call, which leaves the audit row
// PENDING the way a crash after sending would.
type flakyStore struct {
	*memStore
	failComplete bool
}

func (f *flakyStore) Complete(ctx context.Context, eventID string) error {
	if f.failComplete {
		f.failComplete = false
		return errors.New("connection reset")
	}
	return f.memStore.Complete(ctx, eventID)
}

func accountCreated(eventID string) events.BankAccountCreated {
	branch := "BR001"
	return events.BankAccountCreated{
		AccountNumber:  100001,
		CustomerID:     5001,
		Name:           events.Name{FirstName: "Ana", LastName: "Santos"},
		BranchCode:     &branch,
		AccountType:    "SAVINGS",
		InitialBalance: decimal.NewFromInt(1000),
		InterestRate:   decimal.RequireFromString("3.5"),
		AccountStatus:  "ACTIVE",
		Envelope:       kafka.NewEnvelopeWithID(eventID, events.SourceBankAccount),
	}
}

func contactEvent(email, phone string) events.CustomerAccountCreated {
	return events.CustomerAccountCreated{
		CustomerID:    5001,
		ApplicationID: 1001,
		Name:          events.Name{FirstName: "Ana", LastName: "Santos"},
		Contact:       events.Contact{Email: email, PhoneNumber: phone},
		Envelope:      kafka.NewEnvelope(events.SourceCustomerAccount),
	}
}

func newDispatcher(store Store, ch *fakeChannel) *Dispatcher {
	return NewDispatcher(store, notifier.Channels{Email: ch, SMS: ch}, logging.Discard(), nil)
}

func TestAccountCreatedSendsBothChannelsOnce(t *testing.T) {
	store := newMemStore()
	ch := &fakeChannel{}
	d := newDispatcher(store, ch)
	ctx := context.Background()

	if err := d.RecordContact(ctx, contactEvent("ana@example.com", "+639171234567")); err != nil {
		t.Fatalf("record contact: %v", err)
	}

	evt := accountCreated("evt-100001")
	for i := 0; i < 3; i++ {
		sentNow, err := d.AccountCreated(ctx, evt)
		if err != nil {
			t.Fatalf("delivery %d: %v", i, err)
		}
		if sentNow != (i == 0) {
			t.Fatalf("delivery %d: sent=%v", i, sentNow)
		}
	}

	if len(ch.emails) != 1 || len(ch.sms) != 1 {
		t.Fatalf("expected one email and one sms, got %d/%d", len(ch.emails), len(ch.sms))
	}
	email := ch.emails[0]
	if email.to != "ana@example.com" || email.subject != welcomeSubject {
		t.Fatalf("unexpected email %+v", email)
	}
	for _, want := range []string{"Dear Ana Santos,", "Account Number:  100001", "Branch Code:     BR001", "Initial Balance: ₱1000.00", "Interest Rate:   3.50%"} {
		if !strings.Contains(email.body, want) {
			t.Fatalf("email body missing %q:\n%s", want, email.body)
		}
	}
	wantSMS := "Welcome Ana! Your SAVINGS account #100001 is now active with balance: ₱1000.00. Thank you for banking with us!"
	if ch.sms[0].body != wantSMS || ch.sms[0].to != "+639171234567" {
		t.Fatalf("unexpected sms %+v", ch.sms[0])
	}

	audits, _ := d.ListByCustomer(ctx, 5001)
	if len(audits) != 1 {
		t.Fatalf("expected one audit row, got %d", len(audits))
	}
	if a := audits[0]; !a.Completed() || !a.EmailSent || !a.SMSSent || a.EmailAddress != "ana@example.com" {
		t.Fatalf("unexpected audit %+v", a)
	}
}

func TestAccountCreatedResumesUnsentChannels(t *testing.T) {
	store := &flakyStore{memStore: newMemStore(), failComplete: true}
	ch := &fakeChannel{}
	d := newDispatcher(store, ch)
	ctx := context.Background()
	_ = d.RecordContact(ctx, contactEvent("ana@example.com", "+639171234567"))

	evt := accountCreated("evt-resume")
	if _, err := d.AccountCreated(ctx, evt); err == nil {
		t.Fatal("expected the first attempt to fail")
	}

	sentNow, err := d.AccountCreated(ctx, evt)
	if err != nil || !sentNow {
		t.Fatalf("redelivery: sent=%v err=%v", sentNow, err)
	}
	if len(ch.emails) != 1 || len(ch.sms) != 1 {
		t.Fatalf("redelivery must not resend delivered channels, got %d emails %d sms", len(ch.emails), len(ch.sms))
	}
	audits, _ := store.ListByCustomer(ctx, 5001)
	if len(audits) != 1 || audits[0].Attempts != 2 || !audits[0].Completed() {
		t.Fatalf("unexpected audit %+v", audits)
	}
}

func TestAccountCreatedMissingAddressIsSoftFailure(t *testing.T) {
	store := newMemStore()
	ch := &fakeChannel{}
	d := newDispatcher(store, ch)
	ctx := context.Background()
	_ = d.RecordContact(ctx, contactEvent("ana@example.com", ""))

	if _, err := d.AccountCreated(ctx, accountCreated("evt-nosms")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ch.emails) != 1 || len(ch.sms) != 0 {
		t.Fatalf("expected email only, got %d/%d", len(ch.emails), len(ch.sms))
	}
	a := store.audits["evt-nosms"]
	if !a.Completed() || a.SMSSent || a.SMSError == "" || !a.EmailSent {
		t.Fatalf("unexpected audit %+v", a)
	}
}

func TestAccountCreatedDeliveryFailureIsRecorded(t *testing.T) {
	store := newMemStore()
	ch := &fakeChannel{err: errors.New("provider down")}
	d := newDispatcher(store, ch)
	ctx := context.Background()
	_ = d.RecordContact(ctx, contactEvent("ana@example.com", "+639171234567"))

	if _, err := d.AccountCreated(ctx, accountCreated("evt-down")); err != nil {
		t.Fatalf("channel failures must not fail the event: %v", err)
	}
	a := store.audits["evt-down"]
	if !a.Completed() || a.EmailSent || a.SMSSent {
		t.Fatalf("unexpected audit %+v", a)
	}
	if a.EmailError != "provider down" || a.SMSError != "provider down" {
		t.Fatalf("error detail not kept: %+v", a)
	}
}

func TestAccountCreatedWithoutContactStillAudited(t *testing.T) {
	store := newMemStore()
	ch := &fakeChannel{}
	d := newDispatcher(store, ch)
	ctx := context.Background()

	sentNow, err := d.AccountCreated(ctx, accountCreated("evt-early"))
	if err != nil || !sentNow {
		t.Fatalf("missing contact must not fail the event: sent=%v err=%v", sentNow, err)
	}
	if len(ch.emails) != 0 || len(ch.sms) != 0 {
		t.Fatalf("nothing can be sent without a contact, got %d/%d", len(ch.emails), len(ch.sms))
	}
	a, ok := store.audits["evt-early"]
	if !ok {
		t.Fatal("expected an audit row for the event")
	}
	if !a.Completed() || a.EmailSent || a.SMSSent || a.EmailAddress != "" || a.MobileNumber != "" {
		t.Fatalf("unexpected audit %+v", a)
	}
	if a.EmailError != notifier.ErrNoAddress.Error() || a.SMSError != notifier.ErrNoAddress.Error() {
		t.Fatalf("expected no-address detail on both channels: %+v", a)
	}

	// A late contact does not resend a completed event.
	_ = d.RecordContact(ctx, contactEvent("ana@example.com", "+639171234567"))
	if sentNow, err := d.AccountCreated(ctx, accountCreated("evt-early")); err != nil || sentNow {
		t.Fatalf("redelivery: sent=%v err=%v", sentNow, err)
	}
	if len(ch.emails) != 0 {
		t.Fatal("completed event must not be resent")
	}
}
