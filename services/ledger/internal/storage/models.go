package storage

import (
	"fmt"
	"time"

	"github.com/AfshinJalili/bankflow/libs/banking"
	"github.com/shopspring/decimal"
)

// LedgerAccount is the ledger's local view of a bank account, fed by the
// account events.
type LedgerAccount struct {
	AccountNumber int64
	CustomerID    int64
	Status        banking.AccountStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Entry is one immutable movement. BalanceAfter is BalanceBefore plus the
// signed amount.
type Entry struct {
	ID              int64
	TransactionID   string
	AccountNumber   int64
	CustomerID      int64
	Type            banking.TransactionType
	Amount          decimal.Decimal
	BalanceBefore   decimal.Decimal
	BalanceAfter    decimal.Decimal
	Status          banking.TransactionStatus
	Description     string
	ReferenceNumber string
	TransactionDate time.Time
}

// TransactionID formats the public id of the n-th entry written at at.
func TransactionID(at time.Time, n int64) string {
	return fmt.Sprintf("TXN-%s-%04d", at.UTC().Format("20060102150405"), n)
}
