package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/AfshinJalili/bankflow/libs/banking"
	"github.com/AfshinJalili/bankflow/libs/outbox"
	"github.com/AfshinJalili/bankflow/services/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

func setupStore(t *testing.T) (*Store, *pgxpool.Pool) {
	t.Helper()
	if !testutil.IntegrationEnabled() {
		t.Skip("set RUN_DB_INTEGRATION=1 to run")
	}
	pool, err := testutil.SetupTestDB(Migrations, MigrationsDir, VersionTable)
	if err != nil {
		t.Skipf("db connection failed: %v", err)
	}
	t.Cleanup(pool.Close)
	if err := testutil.Truncate(context.Background(), pool, "bank_accounts", OutboxTable); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return New(pool), pool
}

func sampleAccount(customerID int64) Account {
	branch := "BR001"
	return Account{
		CustomerID:     customerID,
		FirstName:      "Ana",
		LastName:       "Reyes",
		BranchCode:     &branch,
		AccountType:    banking.AccountSavings,
		CurrencyType:   "USD",
		InitialBalance: decimal.NewFromInt(1000),
		InterestRate:   decimal.RequireFromString("3.5"),
		Status:         banking.AccountActive,
	}
}

func announce(a Account) []outbox.Message {
	return []outbox.Message{{Topic: "bank-account-created", Key: "k", Payload: map[string]int64{"accountNumber": a.AccountNumber}}}
}

func TestOpenIsGuardedByCustomer(t *testing.T) {
	store, pool := setupStore(t)
	ctx := context.Background()

	first, created, err := store.Open(ctx, sampleAccount(5001), announce)
	if err != nil || !created {
		t.Fatalf("open: created=%v err=%v", created, err)
	}
	if first.AccountNumber < 100001 {
		t.Fatalf("unexpected account number %d", first.AccountNumber)
	}

	again, created, err := store.Open(ctx, sampleAccount(5001), announce)
	if err != nil || created {
		t.Fatalf("replay: created=%v err=%v", created, err)
	}
	if again.AccountNumber != first.AccountNumber {
		t.Fatalf("replay must return the existing account")
	}
	if !again.InitialBalance.Equal(decimal.NewFromInt(1000)) || !again.InterestRate.Equal(decimal.RequireFromString("3.5")) {
		t.Fatalf("decimal round trip failed: %s %s", again.InitialBalance, again.InterestRate)
	}

	var pending int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM account_outbox`).Scan(&pending); err != nil {
		t.Fatalf("count outbox: %v", err)
	}
	if pending != 1 {
		t.Fatalf("expected exactly one announcement, got %d", pending)
	}
}

func TestUpdateStatus(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	a, _, err := store.Open(ctx, sampleAccount(5002), announce)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	updated, err := store.Update(ctx, a.AccountNumber, func(acc *Account) ([]outbox.Message, error) {
		acc.Status = banking.AccountFrozen
		return nil, nil
	})
	if err != nil || updated.Status != banking.AccountFrozen {
		t.Fatalf("update: %+v %v", updated, err)
	}
	if _, err := store.Update(ctx, 1, func(*Account) ([]outbox.Message, error) { return nil, nil }); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	byBranch, err := store.ListByBranch(ctx, "BR001")
	if err != nil || len(byBranch) != 1 {
		t.Fatalf("expected one BR001 account, got %d (%v)", len(byBranch), err)
	}
	byCustomer, err := store.ListByCustomer(ctx, 5002)
	if err != nil || len(byCustomer) != 1 {
		t.Fatalf("expected one account for customer, got %d (%v)", len(byCustomer), err)
	}
}
