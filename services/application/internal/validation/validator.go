package validation

import (
	"strings"

	"github.com/AfshinJalili/bankflow/libs/banking"
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	return "invalid application"
}

type Applicant struct {
	FirstName    string
	MiddleName   string
	LastName     string
	PhoneNumber  string
	Email        string
	Region       string
	Province     string
	Municipality string
	Street       string
	IdentityType string
	IDRefNumber  string
	AccountType  string
	CurrencyType string
}

func ValidateApplicant(a Applicant) ValidationErrors {
	var errs ValidationErrors
	required := []struct{ field, value string }{
		{"first_name", a.FirstName},
		{"last_name", a.LastName},
		{"phone_number", a.PhoneNumber},
		{"email", a.Email},
		{"id_ref_number", a.IDRefNumber},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			errs = append(errs, FieldError{Field: r.field, Message: r.field + " is required"})
		}
	}

	if phone := strings.TrimSpace(a.PhoneNumber); phone != "" && !banking.ValidPhone(phone) {
		errs = append(errs, FieldError{Field: "phone_number", Message: "phone_number must be in international format"})
	}
	if email := strings.TrimSpace(a.Email); email != "" && !banking.ValidEmail(email) {
		errs = append(errs, FieldError{Field: "email", Message: "email is invalid"})
	}

	if _, err := banking.ParseIdentityType(a.IdentityType); err != nil {
		errs = append(errs, FieldError{Field: "identity_type", Message: "identity_type must be PASSPORT, DRIVER_LICENSE or NATIONAL_ID"})
	}
	if _, err := banking.ParseAccountType(a.AccountType); err != nil {
		errs = append(errs, FieldError{Field: "account_type", Message: "account_type is not supported"})
	}
	if _, err := banking.ParseCurrencyType(a.CurrencyType); err != nil {
		errs = append(errs, FieldError{Field: "currency_type", Message: "currency_type is not supported"})
	}
	return errs
}
