package banking

import (
	"errors"
	"testing"
)

func TestParseNormalizesCase(t *testing.T) {
	got, err := ParseAccountType(" time_deposit ")
	if err != nil || got != AccountTimeDeposit {
		t.Fatalf("expected TIME_DEPOSIT, got %q (%v)", got, err)
	}
	cur, err := ParseCurrencyType("nzd")
	if err != nil || cur != CurrencyNZD {
		t.Fatalf("expected NZD, got %q (%v)", cur, err)
	}
}

func TestParseRejectsUnknownValues(t *testing.T) {
	cases := []func() error{
		func() error { _, err := ParseIdentityType("LIBRARY_CARD"); return err },
		func() error { _, err := ParseAccountType("CHECKING"); return err },
		func() error { _, err := ParseCurrencyType("BTC"); return err },
		func() error { _, err := ParseKYCStatus(""); return err },
		func() error { _, err := ParseAccountStatus("DORMANT"); return err },
	}
	for i, fn := range cases {
		if err := fn(); !errors.Is(err, ErrInvalidEnumValue) {
			t.Fatalf("case %d: expected ErrInvalidEnumValue, got %v", i, err)
		}
	}
}
