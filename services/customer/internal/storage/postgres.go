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
)

//go:embed migrations/*.sql
var Migrations embed.FS

const (
	MigrationsDir = "migrations"
	VersionTable  = "customer_goose_version"
	OutboxTable   = "customer_outbox"
)

var (
	ErrNotFound           = errors.New("customer not found")
	ErrDuplicateEmail     = errors.New("email already belongs to another customer")
	ErrAlreadyProvisioned = errors.New("customer already provisioned for application")
)

const customerColumns = `
	customer_id, application_id, first_name, middle_name, last_name, phone_number, email,
	region, province, municipality, street, identity_type, id_ref_number,
	account_type, currency_type, branch_code, kyc_status, kyc_verified_date,
	provisioned_at, created_at, updated_at`

// Mutation changes a customer loaded under lock and returns the events to
// enqueue with the change.
type Mutation func(c *Customer) ([]outbox.Message, error)

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

// Insert records the customer for c.ApplicationID without a branch. When a row
// for the application already exists it is returned as is if it was never
// finalized, so an interrupted provisioning resumes with the same customer id;
// a finalized row yields ErrAlreadyProvisioned.
func (s *Store) Insert(ctx context.Context, c Customer) (Customer, error) {
	existing, err := s.GetByApplication(ctx, c.ApplicationID)
	switch {
	case err == nil:
		return resumable(existing)
	case !errors.Is(err, ErrNotFound):
		return Customer{}, err
	}

	id, err := s.seq.Next(ctx, s.pool, sequence.CustomerID)
	if err != nil {
		return Customer{}, err
	}
	now := time.Now().UTC()
	c.ID = id
	c.BranchCode = nil
	c.ProvisionedAt = nil
	c.CreatedAt = now
	c.UpdatedAt = now

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO customers (`+customerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		ON CONFLICT (application_id) DO NOTHING
	`,
		c.ID, c.ApplicationID, c.FirstName, c.MiddleName, c.LastName, c.PhoneNumber, c.Email,
		c.Region, c.Province, c.Municipality, c.Street, string(c.IdentityType), c.IDRefNumber,
		string(c.AccountType), string(c.CurrencyType), c.BranchCode, string(c.KYCStatus), c.KYCVerifiedDate,
		c.ProvisionedAt, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return Customer{}, ErrDuplicateEmail
		}
		return Customer{}, fmt.Errorf("insert customer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		existing, err := s.GetByApplication(ctx, c.ApplicationID)
		if err != nil {
			return Customer{}, err
		}
		return resumable(existing)
	}
	return c, nil
}

func resumable(c Customer) (Customer, error) {
	if c.Provisioned() {
		return c, ErrAlreadyProvisioned
	}
	return c, nil
}

func (s *Store) Get(ctx context.Context, id int64) (Customer, error) {
	return s.getOne(ctx, `SELECT `+customerColumns+` FROM customers WHERE customer_id = $1`, id)
}

func (s *Store) GetByApplication(ctx context.Context, applicationID int64) (Customer, error) {
	return s.getOne(ctx, `SELECT `+customerColumns+` FROM customers WHERE application_id = $1`, applicationID)
}

func (s *Store) getOne(ctx context.Context, sql string, arg int64) (Customer, error) {
	c, err := scanCustomer(s.pool.QueryRow(ctx, sql, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, ErrNotFound
	}
	return c, err
}

func (s *Store) List(ctx context.Context) ([]Customer, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY customer_id`)
	if err != nil {
		return nil, err
	}
	return collectCustomers(rows)
}

func (s *Store) ListByBranch(ctx context.Context, branchCode string) ([]Customer, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+customerColumns+` FROM customers WHERE branch_code = $1 ORDER BY customer_id`, branchCode)
	if err != nil {
		return nil, err
	}
	return collectCustomers(rows)
}

// BranchCounts counts customers per assigned branch.
func (s *Store) BranchCounts(ctx context.Context) ([]BranchCount, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT branch_code, COUNT(*)
		FROM customers
		WHERE branch_code IS NOT NULL
		GROUP BY branch_code
		ORDER BY branch_code
	`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (BranchCount, error) {
		var bc BranchCount
		err := row.Scan(&bc.BranchCode, &bc.Customers)
		return bc, err
	})
}

// Update applies fn to the locked row, persists the mutable columns and
// enqueues the returned events in one transaction.
func (s *Store) Update(ctx context.Context, id int64, fn Mutation) (Customer, error) {
	var updated Customer
	err := postgres.InTx(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE customer_id = $1 FOR UPDATE`, id)
		c, err := scanCustomer(row)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		msgs, err := fn(&c)
		if err != nil {
			return err
		}
		c.UpdatedAt = time.Now().UTC()

		if _, err := tx.Exec(ctx, `
			UPDATE customers
			SET phone_number = $2, email = $3, branch_code = $4, kyc_status = $5,
			    kyc_verified_date = $6, provisioned_at = $7, updated_at = $8
			WHERE customer_id = $1
		`, c.ID, c.PhoneNumber, c.Email, c.BranchCode, string(c.KYCStatus), c.KYCVerifiedDate, c.ProvisionedAt, c.UpdatedAt); err != nil {
			if postgres.IsUniqueViolation(err) {
				return ErrDuplicateEmail
			}
			return fmt.Errorf("update customer %d: %w", id, err)
		}
		if err := s.outbox.Enqueue(ctx, tx, msgs...); err != nil {
			return err
		}
		updated = c
		return nil
	})
	return updated, err
}

func scanCustomer(row pgx.Row) (Customer, error) {
	var c Customer
	var identity, accountType, currency, kyc string
	err := row.Scan(
		&c.ID, &c.ApplicationID, &c.FirstName, &c.MiddleName, &c.LastName, &c.PhoneNumber, &c.Email,
		&c.Region, &c.Province, &c.Municipality, &c.Street, &identity, &c.IDRefNumber,
		&accountType, &currency, &c.BranchCode, &kyc, &c.KYCVerifiedDate,
		&c.ProvisionedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return Customer{}, err
	}
	c.IdentityType = banking.IdentityType(identity)
	c.AccountType = banking.AccountType(accountType)
	c.CurrencyType = banking.CurrencyType(currency)
	c.KYCStatus = banking.KYCStatus(kyc)
	return c, nil
}

func collectCustomers(rows pgx.Rows) ([]Customer, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Customer, error) {
		return scanCustomer(row)
	})
}
