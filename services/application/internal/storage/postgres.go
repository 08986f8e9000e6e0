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
	"github.com/AfshinJalili/bankflow/services/application/internal/lifecycle"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var Migrations embed.FS

const (
	MigrationsDir = "migrations"
	VersionTable  = "application_goose_version"
	OutboxTable   = "application_outbox"
)

var (
	ErrNotFound       = errors.New("application not found")
	ErrDuplicateEmail = errors.New("email already used by an open application")
)

const applicationColumns = `
	application_id, first_name, middle_name, last_name, phone_number, email,
	region, province, municipality, street, identity_type, id_ref_number,
	account_type, currency_type, application_date, status, kyc_status,
	reviewed_by, created_at, updated_at`

// Mutation changes an application loaded under lock and returns the events to
// enqueue with the change.
type Mutation func(app *Application) ([]outbox.Message, error)

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

func (s *Store) Create(ctx context.Context, app Application) (Application, error) {
	id, err := s.seq.Next(ctx, s.pool, sequence.ApplicationID)
	if err != nil {
		return Application{}, err
	}
	app.ID = id
	now := time.Now().UTC()
	if app.ApplicationDate.IsZero() {
		app.ApplicationDate = now
	}
	app.Status = lifecycle.StatusPending
	app.CreatedAt = now
	app.UpdatedAt = now

	_, err = s.pool.Exec(ctx, `
		INSERT INTO applications (`+applicationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`,
		app.ID, app.FirstName, app.MiddleName, app.LastName, app.PhoneNumber, app.Email,
		app.Region, app.Province, app.Municipality, app.Street, string(app.IdentityType), app.IDRefNumber,
		string(app.AccountType), string(app.CurrencyType), app.ApplicationDate, string(app.Status), string(app.KYCStatus),
		app.ReviewedBy, app.CreatedAt, app.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return Application{}, ErrDuplicateEmail
		}
		return Application{}, fmt.Errorf("insert application: %w", err)
	}
	return app, nil
}

func (s *Store) Get(ctx context.Context, id int64) (Application, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+applicationColumns+` FROM applications WHERE application_id = $1`, id)
	app, err := scanApplication(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Application{}, ErrNotFound
	}
	return app, err
}

func (s *Store) List(ctx context.Context) ([]Application, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+applicationColumns+` FROM applications ORDER BY application_id`)
	if err != nil {
		return nil, err
	}
	return collectApplications(rows)
}

func (s *Store) ListByStatus(ctx context.Context, status lifecycle.Status) ([]Application, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+applicationColumns+` FROM applications WHERE status = $1 ORDER BY application_id`, string(status))
	if err != nil {
		return nil, err
	}
	return collectApplications(rows)
}

// Update applies fn to the locked row, persists the result and enqueues the
// returned events in one transaction.
func (s *Store) Update(ctx context.Context, id int64, fn Mutation) (Application, error) {
	var updated Application
	err := postgres.InTx(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT `+applicationColumns+` FROM applications WHERE application_id = $1 FOR UPDATE`, id)
		app, err := scanApplication(row)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		msgs, err := fn(&app)
		if err != nil {
			return err
		}
		app.UpdatedAt = time.Now().UTC()

		if _, err := tx.Exec(ctx, `
			UPDATE applications
			SET status = $2, kyc_status = $3, reviewed_by = $4, updated_at = $5
			WHERE application_id = $1
		`, app.ID, string(app.Status), string(app.KYCStatus), app.ReviewedBy, app.UpdatedAt); err != nil {
			return fmt.Errorf("update application %d: %w", id, err)
		}
		if err := s.outbox.Enqueue(ctx, tx, msgs...); err != nil {
			return err
		}
		updated = app
		return nil
	})
	return updated, err
}

func scanApplication(row pgx.Row) (Application, error) {
	var app Application
	var identity, accountType, currency, status, kyc string
	err := row.Scan(
		&app.ID, &app.FirstName, &app.MiddleName, &app.LastName, &app.PhoneNumber, &app.Email,
		&app.Region, &app.Province, &app.Municipality, &app.Street, &identity, &app.IDRefNumber,
		&accountType, &currency, &app.ApplicationDate, &status, &kyc,
		&app.ReviewedBy, &app.CreatedAt, &app.UpdatedAt,
	)
	if err != nil {
		return Application{}, err
	}
	app.IdentityType = banking.IdentityType(identity)
	app.AccountType = banking.AccountType(accountType)
	app.CurrencyType = banking.CurrencyType(currency)
	app.Status = lifecycle.Status(status)
	app.KYCStatus = banking.KYCStatus(kyc)
	return app, nil
}

func collectApplications(rows pgx.Rows) ([]Application, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Application, error) {
		return scanApplication(row)
	})
}
