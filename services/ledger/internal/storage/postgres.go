package storage

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strconv"
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
	VersionTable  = "ledger_goose_version"
	OutboxTable   = "ledger_outbox"

	lockPrefix   = "ledger:"
	txRetryLimit = 5
)

var (
	ErrAccountNotFound = errors.New("ledger account not found")
	ErrEntryNotFound   = errors.New("transaction not found")
)

const entryColumns = `
	id, transaction_id, account_number, customer_id, transaction_type,
	amount::text, balance_before::text, balance_after::text, status,
	description, reference_number, transaction_date`

// Posting builds the next entry of acct from its current balance. Returning an
// error aborts the append and nothing is written.
type Posting func(acct LedgerAccount, balance decimal.Decimal) (Entry, error)

// Announce builds the events enqueued with a freshly written entry.
type Announce func(e Entry) []outbox.Message

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

// Append writes the entry built by post and enqueues its announcement in one
// transaction. Appends for the same account are serialized by an advisory
// lock held until commit, so post always sees the latest balance.
func (s *Store) Append(ctx context.Context, accountNumber int64, post Posting, announce Announce) (Entry, error) {
	var written Entry
	err := postgres.RetryTx(ctx, s.pool, pgx.TxOptions{}, txRetryLimit, func(tx pgx.Tx) error {
		e, err := s.appendEntry(ctx, tx, accountNumber, post, announce)
		if err != nil {
			return err
		}
		written = e
		return nil
	})
	if err != nil {
		return Entry{}, err
	}
	return written, nil
}

// Register records acct in the projection and, when seed is not nil, appends
// the opening entry. It runs at most once per eventID; a replay returns
// processed=false without side effects.
func (s *Store) Register(ctx context.Context, eventID, topic string, acct LedgerAccount, seed Posting, announce Announce) (*Entry, bool, error) {
	var (
		seeded    *Entry
		processed bool
	)
	err := postgres.RetryTx(ctx, s.pool, pgx.TxOptions{}, txRetryLimit, func(tx pgx.Tx) error {
		seeded, processed = nil, false
		fresh, err := markProcessed(ctx, tx, eventID, topic)
		if err != nil || !fresh {
			return err
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO ledger_accounts (account_number, customer_id, account_status, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
			ON CONFLICT (account_number) DO NOTHING
		`, acct.AccountNumber, acct.CustomerID, string(acct.Status)); err != nil {
			return fmt.Errorf("register ledger account %d: %w", acct.AccountNumber, err)
		}

		if seed != nil {
			e, err := s.appendEntry(ctx, tx, acct.AccountNumber, seed, announce)
			if err != nil {
				return err
			}
			seeded = &e
		}
		processed = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return seeded, processed, nil
}

// ApplyStatus projects an account status change, at most once per eventID.
// A change seen before the account itself creates the projection row.
func (s *Store) ApplyStatus(ctx context.Context, eventID, topic string, accountNumber, customerID int64, status banking.AccountStatus) (bool, error) {
	var processed bool
	err := postgres.InTx(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		fresh, err := markProcessed(ctx, tx, eventID, topic)
		if err != nil || !fresh {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO ledger_accounts (account_number, customer_id, account_status, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
			ON CONFLICT (account_number) DO UPDATE
			SET account_status = EXCLUDED.account_status, updated_at = now()
		`, accountNumber, customerID, string(status)); err != nil {
			return fmt.Errorf("apply status to ledger account %d: %w", accountNumber, err)
		}
		processed = true
		return nil
	})
	return processed, err
}

func (s *Store) Account(ctx context.Context, accountNumber int64) (LedgerAccount, error) {
	return scanAccount(s.pool.QueryRow(ctx, `
		SELECT account_number, customer_id, account_status, created_at, updated_at
		FROM ledger_accounts WHERE account_number = $1
	`, accountNumber))
}

// Balance is the balance_after of the latest entry, or zero.
func (s *Store) Balance(ctx context.Context, accountNumber int64) (decimal.Decimal, error) {
	balance, _, err := latest(ctx, s.pool, accountNumber)
	return balance, err
}

func (s *Store) History(ctx context.Context, accountNumber int64) ([]Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+entryColumns+` FROM ledger_entries
		WHERE account_number = $1
		ORDER BY transaction_date DESC, id DESC
	`, accountNumber)
	if err != nil {
		return nil, err
	}
	return collectEntries(rows)
}

func (s *Store) HistoryBetween(ctx context.Context, accountNumber int64, from, to time.Time) ([]Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+entryColumns+` FROM ledger_entries
		WHERE account_number = $1 AND transaction_date BETWEEN $2 AND $3
		ORDER BY transaction_date DESC, id DESC
	`, accountNumber, from, to)
	if err != nil {
		return nil, err
	}
	return collectEntries(rows)
}

func (s *Store) Entry(ctx context.Context, transactionID string) (Entry, error) {
	e, err := scanEntry(s.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM ledger_entries WHERE transaction_id = $1`, transactionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrEntryNotFound
	}
	return e, err
}

func (s *Store) appendEntry(ctx context.Context, tx pgx.Tx, accountNumber int64, post Posting, announce Announce) (Entry, error) {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, lockPrefix+strconv.FormatInt(accountNumber, 10)); err != nil {
		return Entry{}, fmt.Errorf("lock account %d: %w", accountNumber, err)
	}

	acct, err := scanAccount(tx.QueryRow(ctx, `
		SELECT account_number, customer_id, account_status, created_at, updated_at
		FROM ledger_accounts WHERE account_number = $1
	`, accountNumber))
	if err != nil {
		return Entry{}, err
	}

	balance, lastDate, err := latest(ctx, tx, accountNumber)
	if err != nil {
		return Entry{}, err
	}
	e, err := post(acct, balance)
	if err != nil {
		return Entry{}, err
	}

	n, err := s.seq.Next(ctx, tx, sequence.TransactionID)
	if err != nil {
		return Entry{}, err
	}
	if e.TransactionDate.IsZero() {
		e.TransactionDate = time.Now().UTC()
	}
	// Keep (transaction_date, id) ordering equal to append order across
	// instances with skewed clocks.
	if e.TransactionDate.Before(lastDate) {
		e.TransactionDate = lastDate
	}
	e.TransactionID = TransactionID(e.TransactionDate, n)
	e.AccountNumber = acct.AccountNumber
	e.CustomerID = acct.CustomerID

	err = tx.QueryRow(ctx, `
		INSERT INTO ledger_entries (
			transaction_id, account_number, customer_id, transaction_type,
			amount, balance_before, balance_after, status,
			description, reference_number, transaction_date
		)
		VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7::numeric, $8, $9, $10, $11)
		RETURNING id
	`,
		e.TransactionID, e.AccountNumber, e.CustomerID, string(e.Type),
		e.Amount.String(), e.BalanceBefore.String(), e.BalanceAfter.String(), string(e.Status),
		e.Description, e.ReferenceNumber, e.TransactionDate,
	).Scan(&e.ID)
	if err != nil {
		return Entry{}, fmt.Errorf("insert ledger entry: %w", err)
	}
	if announce != nil {
		if err := s.outbox.Enqueue(ctx, tx, announce(e)...); err != nil {
			return Entry{}, err
		}
	}
	return e, nil
}

func markProcessed(ctx context.Context, q postgres.Querier, eventID, topic string) (bool, error) {
	tag, err := q.Exec(ctx, `
		INSERT INTO ledger_processed_events (event_id, topic) VALUES ($1, $2)
		ON CONFLICT (event_id) DO NOTHING
	`, eventID, topic)
	if err != nil {
		return false, fmt.Errorf("mark event %s processed: %w", eventID, err)
	}
	return tag.RowsAffected() == 1, nil
}

func latest(ctx context.Context, q postgres.Querier, accountNumber int64) (decimal.Decimal, time.Time, error) {
	var (
		raw string
		at  time.Time
	)
	err := q.QueryRow(ctx, `
		SELECT balance_after::text, transaction_date FROM ledger_entries
		WHERE account_number = $1
		ORDER BY transaction_date DESC, id DESC
		LIMIT 1
	`, accountNumber).Scan(&raw, &at)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, time.Time{}, nil
	}
	if err != nil {
		return decimal.Zero, time.Time{}, err
	}
	balance, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, time.Time{}, fmt.Errorf("parse balance_after: %w", err)
	}
	return balance, at, nil
}

func scanAccount(row pgx.Row) (LedgerAccount, error) {
	var (
		a      LedgerAccount
		status string
	)
	if err := row.Scan(&a.AccountNumber, &a.CustomerID, &status, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LedgerAccount{}, ErrAccountNotFound
		}
		return LedgerAccount{}, err
	}
	a.Status = banking.AccountStatus(status)
	return a, nil
}

func scanEntry(row pgx.Row) (Entry, error) {
	var (
		e                     Entry
		kind, status          string
		amount, before, after string
	)
	err := row.Scan(
		&e.ID, &e.TransactionID, &e.AccountNumber, &e.CustomerID, &kind,
		&amount, &before, &after, &status,
		&e.Description, &e.ReferenceNumber, &e.TransactionDate,
	)
	if err != nil {
		return Entry{}, err
	}
	if e.Amount, err = decimal.NewFromString(amount); err != nil {
		return Entry{}, fmt.Errorf("parse amount: %w", err)
	}
	if e.BalanceBefore, err = decimal.NewFromString(before); err != nil {
		return Entry{}, fmt.Errorf("parse balance_before: %w", err)
	}
	if e.BalanceAfter, err = decimal.NewFromString(after); err != nil {
		return Entry{}, fmt.Errorf("parse balance_after: %w", err)
	}
	e.Type = banking.TransactionType(kind)
	e.Status = banking.TransactionStatus(status)
	return e, nil
}

func collectEntries(rows pgx.Rows) ([]Entry, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Entry, error) {
		return scanEntry(row)
	})
}
