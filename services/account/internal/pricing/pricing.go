// Package pricing derives the opening terms of a bank account from its type.
package pricing

import (
	"github.com/AfshinJalili/bankflow/libs/banking"
	"github.com/shopspring/decimal"
)

// DefaultAccountType is used when the requested type is not recognized.
const DefaultAccountType = banking.AccountSavings

// ResolveAccountType parses raw and falls back to DefaultAccountType. The
// second result reports whether the fallback was taken.
func ResolveAccountType(raw string) (banking.AccountType, bool) {
	t, err := banking.ParseAccountType(raw)
	if err != nil {
		return DefaultAccountType, true
	}
	return t, false
}

// InitialBalance is the opening deposit required for t.
func InitialBalance(t banking.AccountType) decimal.Decimal {
	switch t {
	case banking.AccountTimeDeposit:
		return decimal.NewFromInt(5000)
	case banking.AccountSavings:
		return decimal.NewFromInt(1000)
	default:
		return decimal.Zero
	}
}

// InterestRate is the annual rate for t, in percent.
func InterestRate(t banking.AccountType) decimal.Decimal {
	switch t {
	case banking.AccountSavings:
		return decimal.RequireFromString("3.5")
	case banking.AccountJoint:
		return decimal.NewFromInt(5)
	case banking.AccountTimeDeposit:
		return decimal.NewFromInt(7)
	default:
		return decimal.Zero
	}
}
