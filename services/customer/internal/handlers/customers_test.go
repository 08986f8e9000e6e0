package handlers

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/AfshinJalili/bankflow/libs/banking"
	"github.com/AfshinJalili/bankflow/libs/logging"
	"github.com/AfshinJalili/bankflow/services/customer/internal/branch"
	"github.com/AfshinJalili/bankflow/services/customer/internal/service"
	"github.com/AfshinJalili/bankflow/services/customer/internal/storage"
	"github.com/AfshinJalili/bankflow/services/testutil"
	"github.com/gin-gonic/gin"
)

type fakeService struct {
	customer   storage.Customer
	err        error
	lastBranch string
	lastKYC    banking.KYCStatus
	lastEmail  string
}

func (f *fakeService) Get(_ context.Context, id int64) (storage.Customer, error) {
	if id != f.customer.ID {
		return storage.Customer{}, fmt.Errorf("get %d: %w", id, storage.ErrNotFound)
	}
	return f.customer, f.err
}

func (f *fakeService) GetByApplication(_ context.Context, id int64) (storage.Customer, error) {
	if id != f.customer.ApplicationID {
		return storage.Customer{}, storage.ErrNotFound
	}
	return f.customer, f.err
}

func (f *fakeService) List(context.Context) ([]storage.Customer, error) {
	return []storage.Customer{f.customer}, f.err
}

func (f *fakeService) ListByBranch(_ context.Context, code string) ([]storage.Customer, error) {
	f.lastBranch = code
	return []storage.Customer{f.customer}, f.err
}

func (f *fakeService) BranchCounts(context.Context) ([]storage.BranchCount, error) {
	return []storage.BranchCount{{BranchCode: "BR001", Customers: 3}}, f.err
}

func (f *fakeService) UpdateContact(_ context.Context, _ int64, phone, email string) (storage.Customer, error) {
	if phone == "" && email == "" {
		return storage.Customer{}, service.ErrInvalidContact
	}
	f.lastEmail = email
	return f.customer, f.err
}

func (f *fakeService) UpdateKYC(_ context.Context, _ int64, kyc banking.KYCStatus) (storage.Customer, error) {
	f.lastKYC = kyc
	return f.customer, f.err
}

func (f *fakeService) ReassignBranch(_ context.Context, _ int64, target string) (storage.Customer, error) {
	f.lastBranch = target
	if target != "BR002" {
		return storage.Customer{}, fmt.Errorf("%w: %s", branch.ErrInvalidBranch, target)
	}
	return f.customer, f.err
}

type fakeLookup map[string]branch.Status

func (f fakeLookup) Lookup(_ context.Context, code string) (branch.Status, error) {
	st, ok := f[code]
	if !ok {
		return branch.Status{}, branch.ErrBranchNotFound
	}
	return st, nil
}

var secret = []byte(testutil.TestJWTSecret)

func newRouter(svc *fakeService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	lookup := fakeLookup{"BR001": {BranchCode: "BR001", BranchName: "Main", Status: branch.StatusActive}}
	New(svc, lookup, logging.Discard()).Register(router, secret)
	return router
}

func sampleCustomer() storage.Customer {
	code := "BR001"
	now := time.Now().UTC()
	return storage.Customer{
		ID:            5001,
		ApplicationID: 1001,
		FirstName:     "Ana",
		LastName:      "Reyes",
		Email:         "ana@example.com",
		BranchCode:    &code,
		KYCStatus:     banking.KYCVerified,
		ProvisionedAt: &now,
		CreatedAt:     now,
	}
}

func TestGetCustomer(t *testing.T) {
	router := newRouter(&fakeService{customer: sampleCustomer()})

	resp := testutil.MakeAPIRequest(router, http.MethodGet, "/customers/5001", nil)
	testutil.AssertHTTPStatus(t, resp, http.StatusOK)
	var item customerItem
	if err := testutil.DecodeJSON(resp, &item); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if item.CustomerID != 5001 || item.BranchCode == nil || *item.BranchCode != "BR001" || !item.Provisioned {
		t.Fatalf("unexpected item %+v", item)
	}

	testutil.AssertErrorCode(t, testutil.MakeAPIRequest(router, http.MethodGet, "/customers/9999", nil), testutil.ErrorCodeNotFound)
	testutil.AssertErrorCode(t, testutil.MakeAPIRequest(router, http.MethodGet, "/customers/abc", nil), testutil.ErrorCodeInvalidRequest)
}

func TestGetByApplication(t *testing.T) {
	router := newRouter(&fakeService{customer: sampleCustomer()})
	resp := testutil.MakeAPIRequest(router, http.MethodGet, "/customers/by-application/1001", nil)
	testutil.AssertHTTPStatus(t, resp, http.StatusOK)
	testutil.AssertErrorCode(t, testutil.MakeAPIRequest(router, http.MethodGet, "/customers/by-application/1002", nil), testutil.ErrorCodeNotFound)
}

func TestCustomerBranch(t *testing.T) {
	svc := &fakeService{customer: sampleCustomer()}
	router := newRouter(svc)

	resp := testutil.MakeAPIRequest(router, http.MethodGet, "/customers/5001/branch", nil)
	testutil.AssertHTTPStatus(t, resp, http.StatusOK)
	var item branchItem
	if err := testutil.DecodeJSON(resp, &item); err != nil || item.BranchName != "Main" {
		t.Fatalf("unexpected branch %+v (%v)", item, err)
	}

	svc.customer.BranchCode = nil
	testutil.AssertErrorCode(t, testutil.MakeAPIRequest(router, http.MethodGet, "/customers/5001/branch", nil), testutil.ErrorCodeNotFound)
}

func TestBranchQueries(t *testing.T) {
	svc := &fakeService{customer: sampleCustomer()}
	router := newRouter(svc)

	resp := testutil.MakeAPIRequest(router, http.MethodGet, "/branches/br001/customers", nil)
	testutil.AssertHTTPStatus(t, resp, http.StatusOK)
	if svc.lastBranch != "BR001" {
		t.Fatalf("expected normalized branch code, got %q", svc.lastBranch)
	}
	testutil.AssertErrorCode(t, testutil.MakeAPIRequest(router, http.MethodGet, "/branches/XYZ/customers", nil), testutil.ErrorCodeInvalidBranch)

	resp = testutil.MakeAPIRequest(router, http.MethodGet, "/branches/counts", nil)
	testutil.AssertHTTPStatus(t, resp, http.StatusOK)
	var counts branchCountsResponse
	if err := testutil.DecodeJSON(resp, &counts); err != nil || len(counts.Branches) != 1 || counts.Branches[0].Customers != 3 {
		t.Fatalf("unexpected counts %+v (%v)", counts, err)
	}
}

func TestStaffRoutesRequireOperator(t *testing.T) {
	router := newRouter(&fakeService{customer: sampleCustomer()})
	body := map[string]string{"kyc_status": "VERIFIED"}

	testutil.AssertErrorCode(t, testutil.MakeAPIRequest(router, http.MethodPut, "/customers/5001/kyc", body), testutil.ErrorCodeUnauthorized)

	viewer, err := testutil.ViewerToken(secret)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	testutil.AssertErrorCode(t, testutil.MakeAuthRequest(router, http.MethodPut, "/customers/5001/kyc", body, viewer), testutil.ErrorCodeForbidden)
}

func TestStaffUpdates(t *testing.T) {
	svc := &fakeService{customer: sampleCustomer()}
	router := newRouter(svc)
	token, _ := testutil.OperatorToken(secret)

	resp := testutil.MakeAuthRequest(router, http.MethodPut, "/customers/5001/kyc", map[string]string{"kyc_status": "rejected"}, token)
	testutil.AssertHTTPStatus(t, resp, http.StatusOK)
	if svc.lastKYC != banking.KYCRejected {
		t.Fatalf("expected REJECTED, got %s", svc.lastKYC)
	}

	resp = testutil.MakeAuthRequest(router, http.MethodPut, "/customers/5001/contact", map[string]string{"email": "new@example.com"}, token)
	testutil.AssertHTTPStatus(t, resp, http.StatusOK)
	if svc.lastEmail != "new@example.com" {
		t.Fatalf("contact not forwarded")
	}
	resp = testutil.MakeAuthRequest(router, http.MethodPut, "/customers/5001/contact", map[string]string{}, token)
	testutil.AssertErrorCode(t, resp, testutil.ErrorCodeInvalidRequest)

	resp = testutil.MakeAuthRequest(router, http.MethodPut, "/customers/5001/branch", map[string]string{"branch_code": "BR002"}, token)
	testutil.AssertHTTPStatus(t, resp, http.StatusOK)
	resp = testutil.MakeAuthRequest(router, http.MethodPut, "/customers/5001/branch", map[string]string{"branch_code": "BR404"}, token)
	testutil.AssertErrorCode(t, resp, testutil.ErrorCodeInvalidBranch)
}
