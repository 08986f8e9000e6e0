package storage

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/AfshinJalili/bankflow/libs/banking"
	"github.com/AfshinJalili/bankflow/libs/outbox"
	"github.com/AfshinJalili/bankflow/libs/postgres"
	"github.com/AfshinJalili/bankflow/libs/sequence"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

//go:embed migrations/*.sql
var Migrations embed.FS

const (
	MigrationsDir = "migrations"
	VersionTable  = "account_goose_version"
	OutboxTable   = "account_outbox"
)

var ErrNotFound = errors.New("bank account not found")

const accountColumns = `
	account_number, customer_id, first_name, middle_name, last_name, branch_code,
	account_type, currency_type, initial_balance::text, interest_rate::text,
	account_status, created_at, updated_at`

// Mutation changes an account loaded under lock and returns the events to
// enqueue with the change.
type Mutation func(a *Account) ([]outbox.Message, error)

// Opening builds the events announcing a freshly numbered account.
type Opening func(a Account) []outbox.Message

type Store struct {
	pool   *pgxpool.Pool
	outbox *outbox.Store
	seq    *sequence.Source
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:   pool,
		outbox: outbox.NewStore(pool, OutboxTable),
		seq:    sequence.New(),
	}
}

func (s *Store) Outbox() *outbox.Store { return s.outbox }

// Open creates the account for a.CustomerID and enqueues the events returned
// by announce in the same transaction. When the customer already has an
// account, that account is returned with created=false and nothing is
// enqueued.
func (s *Store) Open(ctx context.Context, a Account, announce Opening) (Account, bool, error) {
	var (
		opened  Account
		created bool
	)
	err := postgres.InTx(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		existing, err := scanAccount(tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM bank_accounts WHERE customer_id = $1`, a.CustomerID))
		if err == nil {
			opened = existing
			return nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}

		number, err := s.seq.Next(ctx, tx, sequence.AccountNumber)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		a.AccountNumber = number
		a.CreatedAt = now
		a.UpdatedAt = now

		tag, err := tx.Exec(ctx, `
			INSERT INTO bank_accounts (
				account_number, customer_id, first_name, middle_name, last_name, branch_code,
				account_type, currency_type, initial_balance, interest_rate,
				account_status, created_at, updated_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::numeric, $10::numeric, $11, $12, $13)
			ON CONFLICT (customer_id) DO NOTHING
		`,
			a.AccountNumber, a.CustomerID, a.FirstName, a.MiddleName, a.LastName, a.BranchCode,
			string(a.AccountType), a.CurrencyType, a.InitialBalance.String(), a.InterestRate.String(),
			string(a.Status), a.CreatedAt, a.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert bank account: %w", err)
		}
		if tag.RowsAffected() == 0 {
			existing, err := scanAccount(tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM bank_accounts WHERE customer_id = $1`, a.CustomerID))
			if err != nil {
				return err
			}
			opened = existing
			return nil
		}
		if err := s.outbox.Enqueue(ctx, tx, announce(a)...); err != nil {
			return err
		}
		opened = a
		created = true
		return nil
	})
	if err != nil {
		return Account{}, false, err
	}
	return opened, created, nil
}

func (s *Store) Get(ctx context.Context, accountNumber int64) (Account, error) {
	a, err := scanAccount(s.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM bank_accounts WHERE account_number = $1`, accountNumber))
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, ErrNotFound
	}
	return a, err
}

func (s *Store) List(ctx context.Context) ([]Account, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+accountColumns+` FROM bank_accounts ORDER BY account_number`)
	if err != nil {
		return nil, err
	}
	return collectAccounts(rows)
}

func (s *Store) ListByCustomer(ctx context.Context, customerID int64) ([]Account, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+accountColumns+` FROM bank_accounts WHERE customer_id = $1 ORDER BY account_number`, customerID)
	if err != nil {
		return nil, err
	}
	return collectAccounts(rows)
}

func (s *Store) ListByBranch(ctx context.Context, branchCode string) ([]Account, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+accountColumns+` FROM bank_accounts WHERE branch_code = $1 ORDER BY account_number`, branchCode)
	if err != nil {
		return nil, err
	}
	return collectAccounts(rows)
}

// Update applies fn to the locked row, persists its status and enqueues the
// returned events in one transaction.
func (s *Store) Update(ctx context.Context, accountNumber int64, fn Mutation) (Account, error) {
	var updated Account
	err := postgres.InTx(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		a, err := scanAccount(tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM bank_accounts WHERE account_number = $1 FOR UPDATE`, accountNumber))
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		msgs, err := fn(&a)
		if err != nil {
			return err
		}
		a.UpdatedAt = time.Now().UTC()

		if _, err := tx.Exec(ctx, `
			UPDATE bank_accounts SET account_status = $2, updated_at = $3 WHERE account_number = $1
		`, a.AccountNumber, string(a.Status), a.UpdatedAt); err != nil {
			return fmt.Errorf("update bank account %d: %w", accountNumber, err)
		}
		if err := s.outbox.Enqueue(ctx, tx, msgs...); err != nil {
			return err
		}
		updated = a
		return nil
	})
	return updated, err
}

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	var accountType, status, initial, rate string
	err := row.Scan(
		&a.AccountNumber, &a.CustomerID, &a.FirstName, &a.MiddleName, &a.LastName, &a.BranchCode,
		&accountType, &a.CurrencyType, &initial, &rate,
		&status, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return Account{}, err
	}
	if a.InitialBalance, err = decimal.NewFromString(initial); err != nil {
		return Account{}, fmt.Errorf("parse initial_balance: %w", err)
	}
	if a.InterestRate, err = decimal.NewFromString(rate); err != nil {
		return Account{}, fmt.Errorf("parse interest_rate: %w", err)
	}
	a.AccountType = banking.AccountType(accountType)
	a.Status = banking.AccountStatus(status)
	return a, nil
}

func collectAccounts(rows pgx.Rows) ([]Account, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Account, error) {
		return scanAccount(row)
	})
}
