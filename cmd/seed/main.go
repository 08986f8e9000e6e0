package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/AfshinJalili/bankflow/libs/auth"
	base "github.com/AfshinJalili/bankflow/libs/config"
	"github.com/hashicorp/go-retryablehttp"
)

// seed drives demo applications through the application service API so the
// rest of the chain (customer, account, ledger, notification) runs on real
// events.
func main() {
	env := base.EnvString("BANK_ENV", "dev")
	if env != "dev" && env != "test" {
		log.Fatalf("refusing to seed: BANK_ENV must be 'dev' or 'test' (got '%s')", env)
	}

	secret, err := base.LoadJWTSecret(env)
	if err != nil {
		log.Fatalf("jwt secret: %v", err)
	}
	token, err := auth.IssueJWT("seed", []string{auth.RoleOperator}, secret, 10*time.Minute, time.Now())
	if err != nil {
		log.Fatalf("issue operator token: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	c := newClient(base.EnvString("APPLICATION_URL", "http://localhost:8081"), token)

	fmt.Println("Seeding applications...")
	for _, a := range approvedApplicants {
		id, err := c.approve(ctx, a)
		if err != nil {
			log.Fatalf("seed %s: %v", a.Email, err)
		}
		fmt.Printf("✓ Application %d approved (%s, %s)\n", id, a.Email, a.AccountType)
	}

	if os.Getenv("SEED_TESTDATA") == "1" {
		if err := seedTestData(ctx, c); err != nil {
			log.Fatalf("seed test data: %v", err)
		}
		fmt.Println("✓ Test data seeded")
	}

	fmt.Println("\n=== Seed Complete ===")
	fmt.Println("Customers, accounts and opening balances are provisioned asynchronously.")
}

type applicant struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	PhoneNumber  string `json:"phone_number"`
	Email        string `json:"email"`
	Region       string `json:"region"`
	Province     string `json:"province"`
	Municipality string `json:"municipality"`
	Street       string `json:"street"`
	IdentityType string `json:"identity_type"`
	IDRefNumber  string `json:"id_ref_number"`
	AccountType  string `json:"account_type"`
	CurrencyType string `json:"currency_type"`
}

type application struct {
	ApplicationID int64  `json:"application_id"`
	Status        string `json:"status"`
	KYCStatus     string `json:"kyc_status"`
}

var approvedApplicants = []applicant{
	{
		FirstName: "Ana", LastName: "Santos", PhoneNumber: "+639171234567", Email: "ana.santos@example.com",
		Region: "NCR", Province: "Metro Manila", Municipality: "Makati", Street: "Ayala Ave",
		IdentityType: "PASSPORT", IDRefNumber: "P1234567", AccountType: "SAVINGS", CurrencyType: "USD",
	},
	{
		FirstName: "Ben", LastName: "Reyes", PhoneNumber: "+639181234567", Email: "ben.reyes@example.com",
		Region: "VII", Province: "Cebu", Municipality: "Cebu City", Street: "Osmena Blvd",
		IdentityType: "NATIONAL_ID", IDRefNumber: "N7654321", AccountType: "TIME_DEPOSIT", CurrencyType: "USD",
	},
	{
		FirstName: "Carla", LastName: "Cruz", PhoneNumber: "+639191234567", Email: "carla.cruz@example.com",
		Region: "XI", Province: "Davao del Sur", Municipality: "Davao City", Street: "Roxas Ave",
		IdentityType: "DRIVER_LICENSE", IDRefNumber: "D1122334", AccountType: "CURRENT", CurrencyType: "EUR",
	},
}

type client struct {
	baseURL string
	token   string
	http    *retryablehttp.Client
}

func newClient(baseURL, token string) *client {
	hc := retryablehttp.NewClient()
	hc.RetryMax = 5
	hc.Logger = nil
	return &client{baseURL: strings.TrimRight(baseURL, "/"), token: token, http: hc}
}

// approve walks one applicant through the full approval chain.
func (c *client) approve(ctx context.Context, a applicant) (int64, error) {
	id, err := c.create(ctx, a)
	if err != nil {
		return 0, err
	}
	steps := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodPost, "submit", nil},
		{http.MethodPost, "review", nil},
		{http.MethodPut, "kyc", map[string]string{"kyc_status": "VERIFIED"}},
		{http.MethodPost, "approve", nil},
	}
	for _, s := range steps {
		if _, err := c.step(ctx, id, s.method, s.path, s.body); err != nil {
			return 0, err
		}
	}
	return id, nil
}

func (c *client) create(ctx context.Context, a applicant) (int64, error) {
	var app application
	if err := c.do(ctx, http.MethodPost, "/applications", a, http.StatusCreated, &app); err != nil {
		return 0, fmt.Errorf("create: %w", err)
	}
	return app.ApplicationID, nil
}

func (c *client) step(ctx context.Context, id int64, method, action string, body any) (application, error) {
	var app application
	if err := c.do(ctx, method, fmt.Sprintf("/applications/%d/%s", id, action), body, http.StatusOK, &app); err != nil {
		return app, fmt.Errorf("%s %d: %w", action, id, err)
	}
	return app, nil
}

func (c *client) do(ctx context.Context, method, path string, body any, want int, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
