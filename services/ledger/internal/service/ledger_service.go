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
	"github.com/AfshinJalili/bankflow/services/ledger/internal/storage"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount     = errors.New("amount must be positive with at most two decimal places")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAccountInactive   = errors.New("account is not active")
)

// InsufficientFundsError reports a withdrawal larger than the balance. It
// matches ErrInsufficientFunds.
type InsufficientFundsError struct {
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("Insufficient funds. Available: %s, Requested: %s", e.Available.StringFixed(2), e.Requested.StringFixed(2))
}

func (e *InsufficientFundsError) Is(target error) bool { return target == ErrInsufficientFunds }

const (
	seedDescription = "Initial deposit - Account opening"
	seedReference   = "INITIAL-"
)

type Store interface {
	Append(ctx context.Context, accountNumber int64, post storage.Posting, announce storage.Announce) (storage.Entry, error)
	Register(ctx context.Context, eventID, topic string, acct storage.LedgerAccount, seed storage.Posting, announce storage.Announce) (*storage.Entry, bool, error)
	ApplyStatus(ctx context.Context, eventID, topic string, accountNumber, customerID int64, status banking.AccountStatus) (bool, error)
	Balance(ctx context.Context, accountNumber int64) (decimal.Decimal, error)
	History(ctx context.Context, accountNumber int64) ([]storage.Entry, error)
	HistoryBetween(ctx context.Context, accountNumber int64, from, to time.Time) ([]storage.Entry, error)
	Entry(ctx context.Context, transactionID string) (storage.Entry, error)
}

type LedgerService struct {
	store   Store
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time
}

func NewLedgerService(store Store, logger *slog.Logger, metrics *Metrics) *LedgerService {
	if logger == nil {
		logger = slog.Default()
	}
	return &LedgerService{
		store:   store,
		logger:  logger,
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Deposit appends a DEPOSIT of amount to an active account.
func (s *LedgerService) Deposit(ctx context.Context, accountNumber int64, amount decimal.Decimal, description, reference string) (storage.Entry, error) {
	return s.post(ctx, accountNumber, banking.TransactionDeposit, amount, description, reference)
}

// Withdraw appends a WITHDRAWAL of amount when the balance covers it. A
// rejected withdrawal appends nothing.
func (s *LedgerService) Withdraw(ctx context.Context, accountNumber int64, amount decimal.Decimal, description, reference string) (storage.Entry, error) {
	return s.post(ctx, accountNumber, banking.TransactionWithdrawal, amount, description, reference)
}

func (s *LedgerService) post(ctx context.Context, accountNumber int64, kind banking.TransactionType, amount decimal.Decimal, description, reference string) (storage.Entry, error) {
	label := strings.ToLower(string(kind))
	// Amounts are stored as NUMERIC(19,2); finer amounts would be rounded
	// per column and break the balance chain.
	if !amount.IsPositive() || !amount.Equal(amount.Round(2)) {
		s.metrics.transaction(label, "invalid", 0)
		return storage.Entry{}, fmt.Errorf("%w: %s", ErrInvalidAmount, amount.String())
	}

	start := time.Now()
	entry, err := s.store.Append(ctx, accountNumber, func(acct storage.LedgerAccount, balance decimal.Decimal) (storage.Entry, error) {
		if acct.Status != banking.AccountActive {
			return storage.Entry{}, fmt.Errorf("%w: %d is %s", ErrAccountInactive, acct.AccountNumber, acct.Status)
		}
		after := balance.Add(amount)
		if kind == banking.TransactionWithdrawal {
			if amount.GreaterThan(balance) {
				return storage.Entry{}, &InsufficientFundsError{Available: balance, Requested: amount}
			}
			after = balance.Sub(amount)
		}
		return storage.Entry{
			Type:            kind,
			Amount:          amount,
			BalanceBefore:   balance,
			BalanceAfter:    after,
			Status:          banking.TransactionCompleted,
			Description:     strings.TrimSpace(description),
			ReferenceNumber: strings.TrimSpace(reference),
			TransactionDate: s.now(),
		}, nil
	}, announceEntry)
	if err != nil {
		s.metrics.transaction(label, outcome(err), time.Since(start))
		return storage.Entry{}, err
	}

	s.metrics.transaction(label, "completed", time.Since(start))
	s.logger.Info("transaction recorded",
		"transaction_id", entry.TransactionID,
		"account_number", accountNumber,
		"type", kind,
		"amount", amount.String(),
		"balance_after", entry.BalanceAfter.String(),
	)
	return entry, nil
}

// Seed registers a newly opened account and writes its opening deposit when
// the initial balance is positive. Replays of the same event are skipped.
func (s *LedgerService) Seed(ctx context.Context, evt events.BankAccountCreated) (bool, error) {
	status, err := banking.ParseAccountStatus(evt.AccountStatus)
	if err != nil {
		status = banking.AccountActive
	}
	acct := storage.LedgerAccount{AccountNumber: evt.AccountNumber, CustomerID: evt.CustomerID, Status: status}

	var seed storage.Posting
	if evt.InitialBalance.IsPositive() {
		amount := evt.InitialBalance
		reference := seedReference + strconv.FormatInt(evt.AccountNumber, 10)
		seed = func(_ storage.LedgerAccount, _ decimal.Decimal) (storage.Entry, error) {
			return storage.Entry{
				Type:            banking.TransactionDeposit,
				Amount:          amount,
				BalanceBefore:   decimal.Zero,
				BalanceAfter:    amount,
				Status:          banking.TransactionCompleted,
				Description:     seedDescription,
				ReferenceNumber: reference,
				TransactionDate: s.now(),
			}, nil
		}
	}

	entry, processed, err := s.store.Register(ctx, evt.EventID, events.TopicBankAccountCreated, acct, seed, announceEntry)
	if err != nil {
		s.metrics.seed("error")
		return false, fmt.Errorf("register account %d: %w", evt.AccountNumber, err)
	}
	if !processed {
		s.metrics.seed("duplicate")
		s.logger.Info("bank account event already processed, skipping",
			"account_number", evt.AccountNumber,
			"event_id", evt.EventID,
		)
		return false, nil
	}

	s.metrics.seed("created")
	if entry != nil {
		s.logger.Info("initial deposit recorded",
			"transaction_id", entry.TransactionID,
			"account_number", evt.AccountNumber,
			"amount", entry.Amount.String(),
		)
	} else {
		s.logger.Info("account registered without opening balance", "account_number", evt.AccountNumber)
	}
	return true, nil
}

// ApplyStatus projects an account status change so later postings honour it.
func (s *LedgerService) ApplyStatus(ctx context.Context, evt events.BankAccountStatusChanged) (bool, error) {
	status, err := banking.ParseAccountStatus(evt.AccountStatus)
	if err != nil {
		return false, kafka.DLQ(err, "validation")
	}
	processed, err := s.store.ApplyStatus(ctx, evt.EventID, events.TopicBankAccountStatusChanged, evt.AccountNumber, evt.CustomerID, status)
	if err != nil {
		return false, fmt.Errorf("apply status to account %d: %w", evt.AccountNumber, err)
	}
	if !processed {
		s.logger.Info("status change already processed, skipping", "account_number", evt.AccountNumber, "event_id", evt.EventID)
		return false, nil
	}
	s.logger.Info("account status projected", "account_number", evt.AccountNumber, "status", status)
	return true, nil
}

func (s *LedgerService) Balance(ctx context.Context, accountNumber int64) (decimal.Decimal, error) {
	balance, err := s.store.Balance(ctx, accountNumber)
	if err != nil {
		s.metrics.balanceLookup("error")
		return decimal.Zero, err
	}
	s.metrics.balanceLookup("success")
	return balance, nil
}

func (s *LedgerService) History(ctx context.Context, accountNumber int64) ([]storage.Entry, error) {
	return s.store.History(ctx, accountNumber)
}

func (s *LedgerService) HistoryBetween(ctx context.Context, accountNumber int64, from, to time.Time) ([]storage.Entry, error) {
	if to.Before(from) {
		from, to = to, from
	}
	return s.store.HistoryBetween(ctx, accountNumber, from, to)
}

func (s *LedgerService) Get(ctx context.Context, transactionID string) (storage.Entry, error) {
	return s.store.Entry(ctx, strings.TrimSpace(transactionID))
}

func announceEntry(e storage.Entry) []outbox.Message {
	evt := events.TransactionCreated{
		TransactionID:   e.TransactionID,
		AccountNumber:   e.AccountNumber,
		CustomerID:      e.CustomerID,
		TransactionType: string(e.Type),
		Amount:          e.Amount,
		BalanceBefore:   e.BalanceBefore,
		BalanceAfter:    e.BalanceAfter,
		Status:          string(e.Status),
		Description:     e.Description,
		ReferenceNumber: e.ReferenceNumber,
		TransactionDate: e.TransactionDate,
		Envelope: kafka.NewEnvelopeWithID(
			kafka.DeterministicEventID(events.TopicTransactionCreated, e.TransactionID),
			events.SourceTransaction,
		),
	}
	return []outbox.Message{{Topic: events.TopicTransactionCreated, Key: evt.Key(), Payload: evt}}
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrAccountInactive):
		return "inactive"
	case errors.Is(err, storage.ErrAccountNotFound):
		return "not_found"
	default:
		return "error"
	}
}
