package validation

import "testing"

func validApplicant() Applicant {
	return Applicant{
		FirstName:    "Ada",
		LastName:     "Lovelace",
		PhoneNumber:  "+441234567890",
		Email:        "ada@example.com",
		IdentityType: "PASSPORT",
		IDRefNumber:  "P-1",
		AccountType:  "SAVINGS",
		CurrencyType: "usd",
	}
}

func hasField(errs ValidationErrors, field string) bool {
	for _, e := range errs {
		if e.Field == field {
			return true
		}
	}
	return false
}

func TestValidApplicant(t *testing.T) {
	if errs := ValidateApplicant(validApplicant()); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
}

func TestPhoneFormat(t *testing.T) {
	for _, phone := range []string{"0123", "+0123456", "12-34", "+1234567890123456"} {
		a := validApplicant()
		a.PhoneNumber = phone
		if !hasField(ValidateApplicant(a), "phone_number") {
			t.Fatalf("expected phone error for %q", phone)
		}
	}
	a := validApplicant()
	a.PhoneNumber = "639171234567"
	if hasField(ValidateApplicant(a), "phone_number") {
		t.Fatalf("expected phone without plus to pass")
	}
}

func TestRequiredAndEnumFields(t *testing.T) {
	errs := ValidateApplicant(Applicant{Email: "Ada <ada@example.com>", AccountType: "CHECKING"})
	for _, field := range []string{"first_name", "last_name", "phone_number", "id_ref_number", "email", "identity_type", "account_type", "currency_type"} {
		if !hasField(errs, field) {
			t.Fatalf("expected error for %s, got %v", field, errs)
		}
	}
}
