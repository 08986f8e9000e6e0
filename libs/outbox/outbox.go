// Package outbox couples a state change with the events it produces: events
// are written to an outbox table in the same transaction as the state change
// and a relay publishes them to Kafka afterwards, at least once.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/AfshinJalili/bankflow/libs/postgres"
	"github.com/jackc/pgx/v5"
)

type Event struct {
	ID        int64
	Topic     string
	Key       string
	Payload   []byte
	CreatedAt time.Time
	Attempts  int
}

// Message is an event waiting to be enqueued.
type Message struct {
	Topic   string
	Key     string
	Payload any
}

// Marker records the outcome of publishing a claimed event.
type Marker interface {
	Published(ctx context.Context, id int64) error
	Failed(ctx context.Context, id int64, cause error) error
}

type Store struct {
	db    postgres.TxBeginner
	table string
}

func NewStore(db postgres.TxBeginner, table string) *Store {
	return &Store{db: db, table: pgx.Identifier{table}.Sanitize()}
}

// Enqueue writes msgs in order using q, normally the caller's open transaction.
func (s *Store) Enqueue(ctx context.Context, q postgres.Querier, msgs ...Message) error {
	for _, msg := range msgs {
		raw, err := json.Marshal(msg.Payload)
		if err != nil {
			return fmt.Errorf("marshal %s payload: %w", msg.Topic, err)
		}
		_, err = q.Exec(ctx, fmt.Sprintf(`INSERT INTO %s (topic, event_key, payload) VALUES ($1, $2, $3)`, s.table), msg.Topic, msg.Key, raw)
		if err != nil {
			return fmt.Errorf("enqueue %s: %w", msg.Topic, err)
		}
	}
	return nil
}

// Claim locks up to limit unpublished events in id order and hands them to fn.
// Only one claimer per table runs at a time; a concurrent call returns
// without invoking fn, which keeps events for a key in order.
func (s *Store) Claim(ctx context.Context, limit int, fn func(ctx context.Context, events []Event, mark Marker) error) error {
	return postgres.InTx(ctx, s.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var locked bool
		if err := tx.QueryRow(ctx, `SELECT pg_try_advisory_xact_lock(hashtext($1))`, s.table).Scan(&locked); err != nil {
			return err
		}
		if !locked {
			return nil
		}

		rows, err := tx.Query(ctx, fmt.Sprintf(`
			SELECT id, topic, event_key, payload, created_at, attempts
			FROM %s
			WHERE published_at IS NULL
			ORDER BY id
			LIMIT $1
		`, s.table), limit)
		if err != nil {
			return err
		}
		events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Event, error) {
			var e Event
			err := row.Scan(&e.ID, &e.Topic, &e.Key, &e.Payload, &e.CreatedAt, &e.Attempts)
			return e, err
		})
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}
		return fn(ctx, events, &txMarker{tx: tx, table: s.table})
	})
}

type txMarker struct {
	tx    pgx.Tx
	table string
}

func (m *txMarker) Published(ctx context.Context, id int64) error {
	_, err := m.tx.Exec(ctx, fmt.Sprintf(`UPDATE %s SET published_at = now(), attempts = attempts + 1, last_error = NULL WHERE id = $1`, m.table), id)
	return err
}

func (m *txMarker) Failed(ctx context.Context, id int64, cause error) error {
	_, err := m.tx.Exec(ctx, fmt.Sprintf(`UPDATE %s SET attempts = attempts + 1, last_error = $2 WHERE id = $1`, m.table), id, cause.Error())
	return err
}
