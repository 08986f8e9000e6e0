package storage

import (
	"time"

	"github.com/AfshinJalili/bankflow/libs/banking"
)

type Customer struct {
	ID              int64
	ApplicationID   int64
	FirstName       string
	MiddleName      string
	LastName        string
	PhoneNumber     string
	Email           string
	Region          string
	Province        string
	Municipality    string
	Street          string
	IdentityType    banking.IdentityType
	IDRefNumber     string
	AccountType     banking.AccountType
	CurrencyType    banking.CurrencyType
	BranchCode      *string
	KYCStatus       banking.KYCStatus
	KYCVerifiedDate *time.Time
	// ProvisionedAt is nil until the branch is settled and the creation
	// event is enqueued.
	ProvisionedAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (c Customer) Provisioned() bool { return c.ProvisionedAt != nil }

type BranchCount struct {
	BranchCode string
	Customers  int64
}
