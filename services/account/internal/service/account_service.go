package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/AfshinJalili/bankflow/libs/banking"
	"github.com/AfshinJalili/bankflow/libs/events"
	"github.com/AfshinJalili/bankflow/libs/kafka"
	"github.com/AfshinJalili/bankflow/libs/outbox"
	"github.com/AfshinJalili/bankflow/services/account/internal/pricing"
	"github.com/AfshinJalili/bankflow/services/account/internal/storage"
)

// ErrAccountClosed is returned when changing the status of a closed account.
var ErrAccountClosed = errors.New("bank account is closed")

type AccountStore interface {
	Open(ctx context.Context, a storage.Account, announce storage.Opening) (storage.Account, bool, error)
	Update(ctx context.Context, accountNumber int64, fn storage.Mutation) (storage.Account, error)
	Get(ctx context.Context, accountNumber int64) (storage.Account, error)
	List(ctx context.Context) ([]storage.Account, error)
	ListByCustomer(ctx context.Context, customerID int64) ([]storage.Account, error)
	ListByBranch(ctx context.Context, branchCode string) ([]storage.Account, error)
}

type AccountService struct {
	store   AccountStore
	logger  *slog.Logger
	metrics *Metrics
}

func NewAccountService(store AccountStore, logger *slog.Logger, metrics *Metrics) *AccountService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountService{store: store, logger: logger, metrics: metrics}
}

// Provision opens the single bank account of a newly created customer. An
// unknown account type opens a DefaultAccountType account, and the opening
// balance and interest rate follow the resolved type. Replays for the same
// customer return the existing account with created=false.
func (s *AccountService) Provision(ctx context.Context, evt events.CustomerAccountCreated) (storage.Account, bool, error) {
	accountType, defaulted := pricing.ResolveAccountType(evt.AccountType)
	if defaulted {
		s.metrics.defaulted()
		s.logger.Warn("unknown account type, using default",
			"customer_id", evt.CustomerID,
			"account_type", evt.AccountType,
			"default", pricing.DefaultAccountType,
		)
	}

	draft := storage.Account{
		CustomerID:     evt.CustomerID,
		FirstName:      strings.TrimSpace(evt.FirstName),
		MiddleName:     strings.TrimSpace(evt.MiddleName),
		LastName:       strings.TrimSpace(evt.LastName),
		BranchCode:     evt.BranchCode,
		AccountType:    accountType,
		CurrencyType:   evt.CurrencyType,
		InitialBalance: pricing.InitialBalance(accountType),
		InterestRate:   pricing.InterestRate(accountType),
		Status:         banking.AccountActive,
	}

	account, created, err := s.store.Open(ctx, draft, func(a storage.Account) []outbox.Message {
		opened := createdEvent(a)
		return []outbox.Message{{Topic: events.TopicBankAccountCreated, Key: opened.Key(), Payload: opened}}
	})
	if err != nil {
		s.metrics.opened("error")
		return storage.Account{}, false, fmt.Errorf("open account for customer %d: %w", evt.CustomerID, err)
	}
	if !created {
		s.metrics.opened("duplicate")
		s.logger.Info("customer already has an account, skipping",
			"customer_id", evt.CustomerID,
			"account_number", account.AccountNumber,
			"event_id", evt.EventID,
		)
		return account, false, nil
	}

	s.metrics.opened("created")
	s.logger.Info("bank account opened",
		"account_number", account.AccountNumber,
		"customer_id", account.CustomerID,
		"account_type", account.AccountType,
		"initial_balance", account.InitialBalance.String(),
		"event_id", evt.EventID,
	)
	return account, true, nil
}

func (s *AccountService) Get(ctx context.Context, accountNumber int64) (storage.Account, error) {
	return s.store.Get(ctx, accountNumber)
}

func (s *AccountService) List(ctx context.Context) ([]storage.Account, error) {
	return s.store.List(ctx)
}

func (s *AccountService) ListByCustomer(ctx context.Context, customerID int64) ([]storage.Account, error) {
	return s.store.ListByCustomer(ctx, customerID)
}

func (s *AccountService) ListByBranch(ctx context.Context, branchCode string) ([]storage.Account, error) {
	return s.store.ListByBranch(ctx, strings.ToUpper(strings.TrimSpace(branchCode)))
}

// UpdateStatus sets the account status and announces the change. Setting the
// current status again is a no-op; a CLOSED account cannot change.
func (s *AccountService) UpdateStatus(ctx context.Context, accountNumber int64, status banking.AccountStatus) (storage.Account, error) {
	account, err := s.store.Update(ctx, accountNumber, func(a *storage.Account) ([]outbox.Message, error) {
		if a.Status == status {
			return nil, nil
		}
		if a.Status == banking.AccountClosed {
			return nil, fmt.Errorf("%w: %d", ErrAccountClosed, a.AccountNumber)
		}
		previous := a.Status
		a.Status = status
		evt := events.BankAccountStatusChanged{
			AccountNumber:  a.AccountNumber,
			CustomerID:     a.CustomerID,
			PreviousStatus: string(previous),
			AccountStatus:  string(status),
			Envelope:       kafka.NewEnvelope(events.SourceBankAccount),
		}
		return []outbox.Message{{Topic: events.TopicBankAccountStatusChanged, Key: evt.Key(), Payload: evt}}, nil
	})
	if err != nil {
		return storage.Account{}, err
	}
	s.metrics.statusChanged(string(status))
	s.logger.Info("bank account status updated", "account_number", accountNumber, "status", status)
	return account, nil
}

func createdEvent(a storage.Account) events.BankAccountCreated {
	number := strconv.FormatInt(a.AccountNumber, 10)
	return events.BankAccountCreated{
		AccountNumber: a.AccountNumber,
		CustomerID:    a.CustomerID,
		Name: events.Name{
			FirstName:  a.FirstName,
			MiddleName: a.MiddleName,
			LastName:   a.LastName,
		},
		BranchCode:     a.BranchCode,
		AccountType:    string(a.AccountType),
		InitialBalance: a.InitialBalance,
		InterestRate:   a.InterestRate,
		AccountStatus:  string(a.Status),
		Envelope: kafka.NewEnvelopeWithID(
			kafka.DeterministicEventID(events.TopicBankAccountCreated, number),
			events.SourceBankAccount,
		),
	}
}
