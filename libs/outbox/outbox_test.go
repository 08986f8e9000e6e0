package outbox

import (
	"context"
	"testing"

	"github.com/AfshinJalili/bankflow/libs/postgres"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type execCall struct {
	sql  string
	args []any
}

type recordingQuerier struct {
	postgres.Querier
	calls []execCall
}

func (q *recordingQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	q.calls = append(q.calls, execCall{sql: sql, args: args})
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func TestEnqueueWritesMessagesInOrder(t *testing.T) {
	store := NewStore(nil, "ledger_outbox")
	q := &recordingQuerier{}

	err := store.Enqueue(context.Background(), q,
		Message{Topic: "transaction-created", Key: "TXN-1", Payload: map[string]string{"transactionId": "TXN-1"}},
		Message{Topic: "transaction-created", Key: "TXN-2", Payload: map[string]string{"transactionId": "TXN-2"}},
	)
	require.NoError(t, err)
	require.Len(t, q.calls, 2)
	assert.Contains(t, q.calls[0].sql, `INSERT INTO "ledger_outbox"`)
	assert.Equal(t, "TXN-1", q.calls[0].args[1])
	assert.JSONEq(t, `{"transactionId":"TXN-2"}`, string(q.calls[1].args[2].([]byte)))
}

func TestEnqueueRejectsUnmarshalablePayload(t *testing.T) {
	store := NewStore(nil, "ledger_outbox")
	q := &recordingQuerier{}

	err := store.Enqueue(context.Background(), q, Message{Topic: "t", Payload: make(chan int)})
	require.Error(t, err)
	assert.Empty(t, q.calls)
}
