package storage

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/AfshinJalili/bankflow/libs/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var Migrations embed.FS

const (
	MigrationsDir = "migrations"
	VersionTable  = "notification_goose_version"
)

var (
	ErrContactNotFound = errors.New("customer contact not found")
	ErrAuditNotFound   = errors.New("notification audit not found")
)

const auditColumns = `
	id, event_id, customer_id, COALESCE(account_number, 0), notification_type, status,
	email_address, email_sent, email_error, mobile_number, sms_sent, sms_error,
	attempts, created_at, sent_at`

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// UpsertContact stores the latest addresses of a customer.
func (s *Store) UpsertContact(ctx context.Context, c Contact) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO customer_contacts (customer_id, first_name, last_name, email, phone_number, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (customer_id) DO UPDATE
		SET first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			email = EXCLUDED.email,
			phone_number = EXCLUDED.phone_number,
			updated_at = now()
	`, c.CustomerID, c.FirstName, c.LastName, c.Email, c.PhoneNumber)
	if err != nil {
		return fmt.Errorf("upsert contact %d: %w", c.CustomerID, err)
	}
	return nil
}

func (s *Store) Contact(ctx context.Context, customerID int64) (Contact, error) {
	var c Contact
	err := s.pool.QueryRow(ctx, `
		SELECT customer_id, first_name, last_name, email, phone_number, updated_at
		FROM customer_contacts WHERE customer_id = $1
	`, customerID).Scan(&c.CustomerID, &c.FirstName, &c.LastName, &c.Email, &c.PhoneNumber, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Contact{}, ErrContactNotFound
	}
	return c, err
}

// Claim creates the PENDING audit row for draft.EventID, or loads the
// existing one. claimed is false when the event was already completed; a
// PENDING row is handed back so the caller resumes unsent channels.
func (s *Store) Claim(ctx context.Context, draft Audit) (Audit, bool, error) {
	var (
		audit   Audit
		claimed bool
	)
	err := postgres.InTx(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO notification_audit (
				event_id, customer_id, account_number, notification_type, status,
				email_address, mobile_number
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (event_id) DO NOTHING
		`, draft.EventID, draft.CustomerID, draft.AccountNumber, draft.NotificationType, StatusPending,
			draft.EmailAddress, draft.MobileNumber)
		if err != nil {
			return fmt.Errorf("claim notification %s: %w", draft.EventID, err)
		}

		audit, err = scanAudit(tx.QueryRow(ctx, `SELECT `+auditColumns+` FROM notification_audit WHERE event_id = $1 FOR UPDATE`, draft.EventID))
		if err != nil {
			return err
		}
		if audit.Completed() {
			return nil
		}
		if tag.RowsAffected() == 0 {
			if _, err := tx.Exec(ctx, `UPDATE notification_audit SET attempts = attempts + 1 WHERE id = $1`, audit.ID); err != nil {
				return err
			}
			audit.Attempts++
		}
		claimed = true
		return nil
	})
	if err != nil {
		return Audit{}, false, err
	}
	return audit, claimed, nil
}

// RecordChannel persists the outcome of one delivery attempt.
func (s *Store) RecordChannel(ctx context.Context, eventID string, ch Channel, sent bool, detail string) error {
	query := `UPDATE notification_audit SET email_sent = $2, email_error = $3 WHERE event_id = $1`
	if ch == ChannelSMS {
		query = `UPDATE notification_audit SET sms_sent = $2, sms_error = $3 WHERE event_id = $1`
	}
	tag, err := s.pool.Exec(ctx, query, eventID, sent, detail)
	if err != nil {
		return fmt.Errorf("record %s outcome for %s: %w", ch, eventID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAuditNotFound
	}
	return nil
}

func (s *Store) Complete(ctx context.Context, eventID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE notification_audit SET status = $2, sent_at = now() WHERE event_id = $1
	`, eventID, StatusCompleted)
	if err != nil {
		return fmt.Errorf("complete notification %s: %w", eventID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAuditNotFound
	}
	return nil
}

func (s *Store) ListByCustomer(ctx context.Context, customerID int64) ([]Audit, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+auditColumns+` FROM notification_audit WHERE customer_id = $1 ORDER BY id DESC`, customerID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Audit, error) {
		return scanAudit(row)
	})
}

func scanAudit(row pgx.Row) (Audit, error) {
	var a Audit
	err := row.Scan(
		&a.ID, &a.EventID, &a.CustomerID, &a.AccountNumber, &a.NotificationType, &a.Status,
		&a.EmailAddress, &a.EmailSent, &a.EmailError, &a.MobileNumber, &a.SMSSent, &a.SMSError,
		&a.Attempts, &a.CreatedAt, &a.SentAt,
	)
	return a, err
}
