package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/AfshinJalili/bankflow/libs/banking"
	"github.com/AfshinJalili/bankflow/libs/events"
	"github.com/AfshinJalili/bankflow/libs/kafka"
	"github.com/AfshinJalili/bankflow/libs/outbox"
	"github.com/AfshinJalili/bankflow/services/customer/internal/branch"
	"github.com/AfshinJalili/bankflow/services/customer/internal/storage"
)

var ErrInvalidContact = errors.New("invalid contact details")

type CustomerStore interface {
	Insert(ctx context.Context, c storage.Customer) (storage.Customer, error)
	Update(ctx context.Context, id int64, fn storage.Mutation) (storage.Customer, error)
	Get(ctx context.Context, id int64) (storage.Customer, error)
	GetByApplication(ctx context.Context, applicationID int64) (storage.Customer, error)
	List(ctx context.Context) ([]storage.Customer, error)
	ListByBranch(ctx context.Context, branchCode string) ([]storage.Customer, error)
	BranchCounts(ctx context.Context) ([]storage.BranchCount, error)
}

type BranchResolver interface {
	Assign(ctx context.Context, customerID int64) (branch.Assignment, error)
	Reassign(ctx context.Context, customerID int64, target string) (branch.Assignment, error)
}

type CustomerService struct {
	store    CustomerStore
	resolver BranchResolver
	logger   *slog.Logger
	metrics  *Metrics
	now      func() time.Time
}

func NewCustomerService(store CustomerStore, resolver BranchResolver, logger *slog.Logger, metrics *Metrics) *CustomerService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CustomerService{
		store:    store,
		resolver: resolver,
		logger:   logger,
		metrics:  metrics,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Provision turns an approved application into a customer exactly once per
// applicationId. The customer row is written first without a branch; the
// branch, the provisioned mark and the outgoing events are then committed
// together. It reports whether this call finished the provisioning.
func (s *CustomerService) Provision(ctx context.Context, evt events.ApplicationApproved) (storage.Customer, bool, error) {
	draft, err := customerFromApproval(evt)
	if err != nil {
		s.metrics.provisioned("invalid")
		return storage.Customer{}, false, kafka.DLQ(err, "validation")
	}

	customer, err := s.store.Insert(ctx, draft)
	switch {
	case errors.Is(err, storage.ErrAlreadyProvisioned):
		s.metrics.provisioned("duplicate")
		s.logger.Info("application already provisioned, skipping", "application_id", evt.ApplicationID, "customer_id", customer.ID, "event_id", evt.EventID)
		return customer, false, nil
	case errors.Is(err, storage.ErrDuplicateEmail):
		s.metrics.provisioned("invalid")
		return storage.Customer{}, false, kafka.DLQ(fmt.Errorf("application %d: %w", evt.ApplicationID, err), "duplicate_email")
	case err != nil:
		s.metrics.provisioned("error")
		return storage.Customer{}, false, fmt.Errorf("insert customer for application %d: %w", evt.ApplicationID, err)
	}

	assignment, assignErr := s.resolver.Assign(ctx, customer.ID)
	if assignErr != nil {
		s.logger.Warn("branch unresolved, provisioning without branch", "customer_id", customer.ID, "error", assignErr)
	}

	finalized, err := s.store.Update(ctx, customer.ID, func(c *storage.Customer) ([]outbox.Message, error) {
		if c.Provisioned() {
			return nil, storage.ErrAlreadyProvisioned
		}
		now := s.now()
		c.ProvisionedAt = &now
		if assignErr != nil {
			c.BranchCode = nil
			return []outbox.Message{createdMessage(*c)}, nil
		}
		code := assignment.BranchCode
		c.BranchCode = &code
		return []outbox.Message{createdMessage(*c), assignmentMessage(*c, assignment)}, nil
	})
	if errors.Is(err, storage.ErrAlreadyProvisioned) {
		s.metrics.provisioned("duplicate")
		return customer, false, nil
	}
	if err != nil {
		s.metrics.provisioned("error")
		return storage.Customer{}, false, fmt.Errorf("finalize customer %d: %w", customer.ID, err)
	}

	s.metrics.provisioned("created")
	if assignErr == nil {
		s.metrics.assigned(string(assignment.Reason))
	}
	s.logger.Info("customer provisioned",
		"customer_id", finalized.ID,
		"application_id", finalized.ApplicationID,
		"branch_code", deref(finalized.BranchCode),
		"event_id", evt.EventID,
	)
	return finalized, true, nil
}

func (s *CustomerService) Get(ctx context.Context, id int64) (storage.Customer, error) {
	return s.store.Get(ctx, id)
}

func (s *CustomerService) GetByApplication(ctx context.Context, applicationID int64) (storage.Customer, error) {
	return s.store.GetByApplication(ctx, applicationID)
}

func (s *CustomerService) List(ctx context.Context) ([]storage.Customer, error) {
	return s.store.List(ctx)
}

func (s *CustomerService) ListByBranch(ctx context.Context, branchCode string) ([]storage.Customer, error) {
	return s.store.ListByBranch(ctx, strings.ToUpper(strings.TrimSpace(branchCode)))
}

func (s *CustomerService) BranchCounts(ctx context.Context) ([]storage.BranchCount, error) {
	return s.store.BranchCounts(ctx)
}

// UpdateContact replaces the phone number and email. Empty values keep the
// current ones.
func (s *CustomerService) UpdateContact(ctx context.Context, id int64, phone, email string) (storage.Customer, error) {
	phone = strings.TrimSpace(phone)
	email = strings.TrimSpace(email)
	if phone == "" && email == "" {
		return storage.Customer{}, fmt.Errorf("%w: phone_number or email required", ErrInvalidContact)
	}
	if phone != "" && !banking.ValidPhone(phone) {
		return storage.Customer{}, fmt.Errorf("%w: phone_number", ErrInvalidContact)
	}
	if email != "" && !banking.ValidEmail(email) {
		return storage.Customer{}, fmt.Errorf("%w: email", ErrInvalidContact)
	}
	c, err := s.store.Update(ctx, id, func(c *storage.Customer) ([]outbox.Message, error) {
		if phone != "" {
			c.PhoneNumber = phone
		}
		if email != "" {
			c.Email = email
		}
		return nil, nil
	})
	if err != nil {
		return storage.Customer{}, err
	}
	s.logger.Info("customer contact updated", "customer_id", id)
	return c, nil
}

// UpdateKYC records a KYC decision; VERIFIED stamps the verification date.
func (s *CustomerService) UpdateKYC(ctx context.Context, id int64, kyc banking.KYCStatus) (storage.Customer, error) {
	c, err := s.store.Update(ctx, id, func(c *storage.Customer) ([]outbox.Message, error) {
		c.KYCStatus = kyc
		if kyc == banking.KYCVerified {
			now := s.now()
			c.KYCVerifiedDate = &now
		} else {
			c.KYCVerifiedDate = nil
		}
		return nil, nil
	})
	if err != nil {
		return storage.Customer{}, err
	}
	s.logger.Info("customer kyc updated", "customer_id", id, "kyc_status", kyc)
	return c, nil
}

// ReassignBranch moves a customer to an operator-chosen ACTIVE branch.
func (s *CustomerService) ReassignBranch(ctx context.Context, id int64, target string) (storage.Customer, error) {
	if _, err := s.store.Get(ctx, id); err != nil {
		return storage.Customer{}, err
	}
	assignment, err := s.resolver.Reassign(ctx, id, target)
	if err != nil {
		return storage.Customer{}, err
	}
	c, err := s.store.Update(ctx, id, func(c *storage.Customer) ([]outbox.Message, error) {
		code := assignment.BranchCode
		c.BranchCode = &code
		return []outbox.Message{assignmentMessage(*c, assignment)}, nil
	})
	if err != nil {
		return storage.Customer{}, err
	}
	s.metrics.assigned(string(assignment.Reason))
	return c, nil
}

func customerFromApproval(evt events.ApplicationApproved) (storage.Customer, error) {
	identity, err := banking.ParseIdentityType(evt.IdentityType)
	if err != nil {
		return storage.Customer{}, fmt.Errorf("application %d identityType: %w", evt.ApplicationID, err)
	}
	accountType, err := banking.ParseAccountType(evt.AccountType)
	if err != nil {
		return storage.Customer{}, fmt.Errorf("application %d accountType: %w", evt.ApplicationID, err)
	}
	currency, err := banking.ParseCurrencyType(evt.CurrencyType)
	if err != nil {
		return storage.Customer{}, fmt.Errorf("application %d currencyType: %w", evt.ApplicationID, err)
	}
	kyc, err := banking.ParseKYCStatus(evt.KYCStatus)
	if err != nil {
		return storage.Customer{}, fmt.Errorf("application %d kycStatus: %w", evt.ApplicationID, err)
	}

	c := storage.Customer{
		ApplicationID: evt.ApplicationID,
		FirstName:     strings.TrimSpace(evt.FirstName),
		MiddleName:    strings.TrimSpace(evt.MiddleName),
		LastName:      strings.TrimSpace(evt.LastName),
		PhoneNumber:   strings.TrimSpace(evt.PhoneNumber),
		Email:         strings.TrimSpace(evt.Email),
		Region:        evt.Region,
		Province:      evt.Province,
		Municipality:  evt.Municipality,
		Street:        evt.Street,
		IdentityType:  identity,
		IDRefNumber:   evt.IDRefNumber,
		AccountType:   accountType,
		CurrencyType:  currency,
		KYCStatus:     kyc,
	}
	if kyc == banking.KYCVerified {
		verified := evt.EventTimestamp.UTC()
		c.KYCVerifiedDate = &verified
	}
	return c, nil
}

func createdMessage(c storage.Customer) outbox.Message {
	idStr := strconv.FormatInt(c.ID, 10)
	evt := events.CustomerAccountCreated{
		CustomerID:    c.ID,
		ApplicationID: c.ApplicationID,
		Name: events.Name{
			FirstName:  c.FirstName,
			MiddleName: c.MiddleName,
			LastName:   c.LastName,
		},
		Contact: events.Contact{
			PhoneNumber: c.PhoneNumber,
			Email:       c.Email,
		},
		AccountType:     string(c.AccountType),
		CurrencyType:    string(c.CurrencyType),
		BranchCode:      c.BranchCode,
		KYCStatus:       string(c.KYCStatus),
		KYCVerifiedDate: c.KYCVerifiedDate,
		Envelope: kafka.NewEnvelopeWithID(
			kafka.DeterministicEventID(events.TopicCustomerAccountCreated, idStr),
			events.SourceCustomerAccount,
		),
	}
	return outbox.Message{Topic: events.TopicCustomerAccountCreated, Key: evt.Key(), Payload: evt}
}

func assignmentMessage(c storage.Customer, a branch.Assignment) outbox.Message {
	evt := branch.Event(c.ID, c.ApplicationID, a)
	return outbox.Message{Topic: events.TopicBranchAssignment, Key: evt.Key(), Payload: evt}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
