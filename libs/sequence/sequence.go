package sequence

import (
	"context"
	"fmt"

	"github.com/AfshinJalili/bankflow/libs/postgres"
)

// Counter names backed by Postgres sequences.
const (
	ApplicationID = "application_id_sequence"
	CustomerID    = "customer_id_sequence"
	AccountNumber = "account_number_sequence"
	TransactionID = "transaction_id_sequence"
)

// Source hands out atomic, monotonic, gap-tolerant numbers shared by every
// instance of a service. Calling Next inside a transaction does not make the
// value transactional: a rolled-back caller leaves a gap.
type Source struct{}

func New() *Source { return &Source{} }

func (s *Source) Next(ctx context.Context, q postgres.Querier, name string) (int64, error) {
	var n int64
	if err := q.QueryRow(ctx, `SELECT nextval($1::regclass)`, name).Scan(&n); err != nil {
		return 0, fmt.Errorf("next %s: %w", name, err)
	}
	return n, nil
}
