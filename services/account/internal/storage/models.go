package storage

import (
	"time"

	"github.com/AfshinJalili/bankflow/libs/banking"
	"github.com/shopspring/decimal"
)

type Account struct {
	AccountNumber  int64
	CustomerID     int64
	FirstName      string
	MiddleName     string
	LastName       string
	BranchCode     *string
	AccountType    banking.AccountType
	CurrencyType   string
	InitialBalance decimal.Decimal
	InterestRate   decimal.Decimal
	Status         banking.AccountStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
