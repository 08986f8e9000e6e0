// Package events defines the wire contract shared by the provisioning
// services: topic names, partition keys and payloads.
package events

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/AfshinJalili/bankflow/libs/kafka"
	"github.com/shopspring/decimal"
)

const (
	TopicApplicationApproved      = "application-approved"
	TopicCustomerAccountCreated   = "customer-account-created"
	TopicBankAccountCreated       = "bank-account-created"
	TopicBankAccountStatusChanged = "bank-account-status-changed"
	TopicTransactionCreated       = "transaction-created"
	TopicBranchAssignment         = "branch-assignment-events"
)

const (
	SourceAccountOpening  = "account-opening-service"
	SourceCustomerAccount = "customer-account-service"
	SourceBankAccount     = "bank-account-service"
	SourceTransaction     = "transaction-service"
)

type Name struct {
	FirstName  string `json:"firstName"`
	MiddleName string `json:"middleName,omitempty"`
	LastName   string `json:"lastName"`
}

func (n Name) Full() string {
	parts := []string{n.FirstName, n.MiddleName, n.LastName}
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}

type Contact struct {
	PhoneNumber string `json:"phoneNumber"`
	Email       string `json:"email"`
}

type Address struct {
	Region       string `json:"region"`
	Province     string `json:"province"`
	Municipality string `json:"municipality"`
	Street       string `json:"street"`
}

type ApplicationApproved struct {
	ApplicationID int64 `json:"applicationId"`
	Name
	Contact
	Address
	IdentityType    string    `json:"identityType"`
	IDRefNumber     string    `json:"idRefNumber"`
	AccountType     string    `json:"accountType"`
	CurrencyType    string    `json:"currencyType"`
	KYCStatus       string    `json:"kycStatus"`
	ApplicationDate time.Time `json:"applicationDate"`
	kafka.Envelope
}

func (e *ApplicationApproved) Key() string { return strconv.FormatInt(e.ApplicationID, 10) }

func (e *ApplicationApproved) Validate() error {
	if err := e.Envelope.Validate(); err != nil {
		return err
	}
	if e.ApplicationID <= 0 {
		return fmt.Errorf("applicationId is required")
	}
	if strings.TrimSpace(e.FirstName) == "" || strings.TrimSpace(e.LastName) == "" {
		return fmt.Errorf("firstName and lastName are required")
	}
	return nil
}

type CustomerAccountCreated struct {
	CustomerID    int64 `json:"customerId"`
	ApplicationID int64 `json:"applicationId"`
	Name
	Contact
	AccountType     string     `json:"accountType"`
	CurrencyType    string     `json:"currencyType"`
	BranchCode      *string    `json:"branchCode"`
	KYCStatus       string     `json:"kycStatus"`
	KYCVerifiedDate *time.Time `json:"kycVerifiedDate,omitempty"`
	kafka.Envelope
}

func (e *CustomerAccountCreated) Key() string { return strconv.FormatInt(e.CustomerID, 10) }

func (e *CustomerAccountCreated) Validate() error {
	if err := e.Envelope.Validate(); err != nil {
		return err
	}
	if e.CustomerID <= 0 {
		return fmt.Errorf("customerId is required")
	}
	if e.ApplicationID <= 0 {
		return fmt.Errorf("applicationId is required")
	}
	return nil
}

type BankAccountCreated struct {
	AccountNumber int64 `json:"accountNumber"`
	CustomerID    int64 `json:"customerId"`
	Name
	BranchCode     *string         `json:"branchCode"`
	AccountType    string          `json:"accountType"`
	InitialBalance decimal.Decimal `json:"initialBalance"`
	InterestRate   decimal.Decimal `json:"interestRate"`
	AccountStatus  string          `json:"accountStatus"`
	kafka.Envelope
}

func (e *BankAccountCreated) Key() string { return strconv.FormatInt(e.AccountNumber, 10) }

func (e *BankAccountCreated) Validate() error {
	if err := e.Envelope.Validate(); err != nil {
		return err
	}
	if e.AccountNumber <= 0 {
		return fmt.Errorf("accountNumber is required")
	}
	if e.CustomerID <= 0 {
		return fmt.Errorf("customerId is required")
	}
	if e.InitialBalance.IsNegative() {
		return fmt.Errorf("initialBalance must not be negative")
	}
	return nil
}

type BankAccountStatusChanged struct {
	AccountNumber  int64  `json:"accountNumber"`
	CustomerID     int64  `json:"customerId"`
	PreviousStatus string `json:"previousStatus"`
	AccountStatus  string `json:"accountStatus"`
	kafka.Envelope
}

func (e *BankAccountStatusChanged) Key() string { return strconv.FormatInt(e.AccountNumber, 10) }

func (e *BankAccountStatusChanged) Validate() error {
	if err := e.Envelope.Validate(); err != nil {
		return err
	}
	if e.AccountNumber <= 0 {
		return fmt.Errorf("accountNumber is required")
	}
	if strings.TrimSpace(e.AccountStatus) == "" {
		return fmt.Errorf("accountStatus is required")
	}
	return nil
}

type TransactionCreated struct {
	TransactionID   string          `json:"transactionId"`
	AccountNumber   int64           `json:"accountNumber"`
	CustomerID      int64           `json:"customerId"`
	TransactionType string          `json:"transactionType"`
	Amount          decimal.Decimal `json:"amount"`
	BalanceBefore   decimal.Decimal `json:"balanceBefore"`
	BalanceAfter    decimal.Decimal `json:"balanceAfter"`
	Status          string          `json:"status"`
	Description     string          `json:"description,omitempty"`
	ReferenceNumber string          `json:"referenceNumber,omitempty"`
	TransactionDate time.Time       `json:"transactionDate"`
	kafka.Envelope
}

func (e *TransactionCreated) Key() string { return e.TransactionID }

func (e *TransactionCreated) Validate() error {
	if err := e.Envelope.Validate(); err != nil {
		return err
	}
	if e.TransactionID == "" {
		return fmt.Errorf("transactionId is required")
	}
	return nil
}

type BranchAssignment struct {
	CustomerID       int64  `json:"customerId"`
	ApplicationID    int64  `json:"applicationId"`
	BranchCode       string `json:"branchCode"`
	AssignmentReason string `json:"assignmentReason"`
	kafka.Envelope
}

func (e *BranchAssignment) Key() string { return strconv.FormatInt(e.CustomerID, 10) }

func (e *BranchAssignment) Validate() error {
	if err := e.Envelope.Validate(); err != nil {
		return err
	}
	if e.CustomerID <= 0 || e.BranchCode == "" {
		return fmt.Errorf("customerId and branchCode are required")
	}
	return nil
}
