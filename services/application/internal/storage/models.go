package storage

import (
	"time"

	"github.com/AfshinJalili/bankflow/libs/banking"
	"github.com/AfshinJalili/bankflow/services/application/internal/lifecycle"
)

type Application struct {
	ID              int64
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
	ApplicationDate time.Time
	Status          lifecycle.Status
	KYCStatus       banking.KYCStatus
	ReviewedBy      *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
