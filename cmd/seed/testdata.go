package main

import (
	"context"
	"fmt"
	"net/http"
)

// seedTestData leaves applications in the non-approved states so the
// lifecycle endpoints have something to show.
func seedTestData(ctx context.Context, c *client) error {
	pending := applicant{
		FirstName: "Dina", LastName: "Lopez", PhoneNumber: "+639201234567", Email: "dina.lopez@example.com",
		IdentityType: "PASSPORT", IDRefNumber: "P7654321", AccountType: "SAVINGS", CurrencyType: "USD",
	}
	if _, err := c.create(ctx, pending); err != nil {
		return fmt.Errorf("pending: %w", err)
	}

	rejected := applicant{
		FirstName: "Eli", LastName: "Garcia", PhoneNumber: "+639211234567", Email: "eli.garcia@example.com",
		IdentityType: "NATIONAL_ID", IDRefNumber: "N1111111", AccountType: "CURRENT", CurrencyType: "USD",
	}
	id, err := c.create(ctx, rejected)
	if err != nil {
		return fmt.Errorf("rejected: %w", err)
	}
	for _, s := range []struct {
		method, action string
		body           any
	}{
		{http.MethodPost, "submit", nil},
		{http.MethodPost, "review", nil},
		{http.MethodPut, "kyc", map[string]string{"kyc_status": "REJECTED"}},
		{http.MethodPost, "reject", nil},
	} {
		if _, err := c.step(ctx, id, s.method, s.action, s.body); err != nil {
			return err
		}
	}

	cancelled := applicant{
		FirstName: "Faye", LastName: "Tan", PhoneNumber: "+639221234567", Email: "faye.tan@example.com",
		IdentityType: "DRIVER_LICENSE", IDRefNumber: "D9999999", AccountType: "JOIN_ACCOUNT", CurrencyType: "GBP",
	}
	id, err = c.create(ctx, cancelled)
	if err != nil {
		return fmt.Errorf("cancelled: %w", err)
	}
	if _, err := c.step(ctx, id, http.MethodPost, "cancel", nil); err != nil {
		return err
	}
	return nil
}
