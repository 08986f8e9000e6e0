// Package banking holds the enumerations shared across the provisioning
// services and their parsers.
package banking

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidEnumValue is returned for a value outside an enumeration.
var ErrInvalidEnumValue = errors.New("invalid enum value")

type IdentityType string

const (
	IdentityPassport      IdentityType = "PASSPORT"
	IdentityDriverLicense IdentityType = "DRIVER_LICENSE"
	IdentityNationalID    IdentityType = "NATIONAL_ID"
)

type AccountType string

const (
	AccountSavings     AccountType = "SAVINGS"
	AccountCurrent     AccountType = "CURRENT"
	AccountTimeDeposit AccountType = "TIME_DEPOSIT"
	AccountJoint       AccountType = "JOIN_ACCOUNT"
)

type CurrencyType string

const (
	CurrencyUSD CurrencyType = "USD"
	CurrencyEUR CurrencyType = "EUR"
	CurrencyGBP CurrencyType = "GBP"
	CurrencyJPY CurrencyType = "JPY"
	CurrencyINR CurrencyType = "INR"
	CurrencyAUD CurrencyType = "AUD"
	CurrencyCAD CurrencyType = "CAD"
	CurrencyCHF CurrencyType = "CHF"
	CurrencyCNY CurrencyType = "CNY"
	CurrencySEK CurrencyType = "SEK"
	CurrencyNZD CurrencyType = "NZD"
)

type KYCStatus string

const (
	KYCPending  KYCStatus = "PENDING"
	KYCVerified KYCStatus = "VERIFIED"
	KYCRejected KYCStatus = "REJECTED"
)

type AccountStatus string

const (
	AccountActive    AccountStatus = "ACTIVE"
	AccountInactive  AccountStatus = "INACTIVE"
	AccountSuspended AccountStatus = "SUSPENDED"
	AccountClosed    AccountStatus = "CLOSED"
	AccountFrozen    AccountStatus = "FROZEN"
)

type TransactionType string

const (
	TransactionDeposit     TransactionType = "DEPOSIT"
	TransactionWithdrawal  TransactionType = "WITHDRAWAL"
	TransactionPayment     TransactionType = "PAYMENT"
	TransactionTransfer    TransactionType = "TRANSFER"
	TransactionWire        TransactionType = "WIRE_TRANSFER"
	TransactionCashAdvance TransactionType = "CASH_ADVANCE"
)

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "PENDING"
	TransactionCompleted TransactionStatus = "COMPLETED"
	TransactionFailed    TransactionStatus = "FAILED"
	TransactionReversed  TransactionStatus = "REVERSED"
	TransactionCancelled TransactionStatus = "CANCELLED"
)

var (
	identityTypes   = []IdentityType{IdentityPassport, IdentityDriverLicense, IdentityNationalID}
	accountTypes    = []AccountType{AccountSavings, AccountCurrent, AccountTimeDeposit, AccountJoint}
	currencyTypes   = []CurrencyType{CurrencyUSD, CurrencyEUR, CurrencyGBP, CurrencyJPY, CurrencyINR, CurrencyAUD, CurrencyCAD, CurrencyCHF, CurrencyCNY, CurrencySEK, CurrencyNZD}
	kycStatuses     = []KYCStatus{KYCPending, KYCVerified, KYCRejected}
	accountStatuses = []AccountStatus{AccountActive, AccountInactive, AccountSuspended, AccountClosed, AccountFrozen}
)

func ParseIdentityType(raw string) (IdentityType, error) {
	return parse(raw, "identity type", identityTypes)
}

func ParseAccountType(raw string) (AccountType, error) {
	return parse(raw, "account type", accountTypes)
}

func ParseCurrencyType(raw string) (CurrencyType, error) {
	return parse(raw, "currency type", currencyTypes)
}

func ParseKYCStatus(raw string) (KYCStatus, error) {
	return parse(raw, "kyc status", kycStatuses)
}

func ParseAccountStatus(raw string) (AccountStatus, error) {
	return parse(raw, "account status", accountStatuses)
}

func parse[T ~string](raw, kind string, allowed []T) (T, error) {
	normalized := T(strings.ToUpper(strings.TrimSpace(raw)))
	for _, v := range allowed {
		if v == normalized {
			return v, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("%w: %s %q", ErrInvalidEnumValue, kind, raw)
}
