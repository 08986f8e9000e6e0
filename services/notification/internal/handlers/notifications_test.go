package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/AfshinJalili/bankflow/libs/logging"
	"github.com/AfshinJalili/bankflow/services/notification/internal/storage"
	"github.com/AfshinJalili/bankflow/services/testutil"
	"github.com/gin-gonic/gin"
)

type fakeService struct {
	audits map[int64][]storage.Audit
	err    error
}

func (f *fakeService) ListByCustomer(_ context.Context, id int64) ([]storage.Audit, error) {
	return f.audits[id], f.err
}

func newRouter(svc *fakeService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	New(svc, logging.Discard()).Register(router)
	return router
}

func TestListByCustomer(t *testing.T) {
	sentAt := time.Date(2025, 10, 5, 14, 30, 46, 0, time.UTC)
	svc := &fakeService{audits: map[int64][]storage.Audit{
		5001: {{
			EventID:          "evt-1",
			CustomerID:       5001,
			AccountNumber:    100001,
			NotificationType: storage.TypeAccountCreated,
			Status:           storage.StatusCompleted,
			EmailAddress:     "ana@example.com",
			EmailSent:        true,
			SMSError:         "no address for channel",
			Attempts:         1,
			CreatedAt:        sentAt,
			SentAt:           &sentAt,
		}},
	}}
	router := newRouter(svc)

	resp := testutil.MakeAPIRequest(router, http.MethodGet, "/customers/5001/notifications", nil)
	testutil.AssertHTTPStatus(t, resp, http.StatusOK)
	var body listResponse
	if err := testutil.DecodeJSON(resp, &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Notifications) != 1 {
		t.Fatalf("expected one notification, got %d", len(body.Notifications))
	}
	n := body.Notifications[0]
	if !n.EmailSent || n.SMSSent || n.SentAt == nil || *n.SentAt != "2025-10-05T14:30:46Z" {
		t.Fatalf("unexpected item %+v", n)
	}

	resp = testutil.MakeAPIRequest(router, http.MethodGet, "/customers/9999/notifications", nil)
	testutil.AssertHTTPStatus(t, resp, http.StatusOK)
	if err := testutil.DecodeJSON(resp, &body); err != nil || body.Notifications == nil || len(body.Notifications) != 0 {
		t.Fatalf("expected empty list, got %+v (%v)", body, err)
	}
}

func TestListByCustomerErrors(t *testing.T) {
	router := newRouter(&fakeService{err: errors.New("db down")})

	resp := testutil.MakeAPIRequest(router, http.MethodGet, "/customers/abc/notifications", nil)
	testutil.AssertErrorCode(t, resp, testutil.ErrorCodeInvalidRequest)

	resp = testutil.MakeAPIRequest(router, http.MethodGet, "/customers/5001/notifications", nil)
	testutil.AssertHTTPStatus(t, resp, http.StatusInternalServerError)
}
