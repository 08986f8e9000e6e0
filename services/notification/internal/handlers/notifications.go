package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/AfshinJalili/bankflow/services/notification/internal/storage"
	"github.com/gin-gonic/gin"
)

type NotificationService interface {
	ListByCustomer(ctx context.Context, customerID int64) ([]storage.Audit, error)
}

type Handler struct {
	Service NotificationService
	Logger  *slog.Logger
}

type notificationItem struct {
	EventID          string  `json:"event_id"`
	CustomerID       int64   `json:"customer_id"`
	AccountNumber    int64   `json:"account_number"`
	NotificationType string  `json:"notification_type"`
	Status           string  `json:"status"`
	EmailAddress     string  `json:"email_address,omitempty"`
	EmailSent        bool    `json:"email_sent"`
	EmailError       string  `json:"email_error,omitempty"`
	MobileNumber     string  `json:"mobile_number,omitempty"`
	SMSSent          bool    `json:"sms_sent"`
	SMSError         string  `json:"sms_error,omitempty"`
	Attempts         int     `json:"attempts"`
	CreatedAt        string  `json:"created_at"`
	SentAt           *string `json:"sent_at,omitempty"`
}

type listResponse struct {
	Notifications []notificationItem `json:"notifications"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func New(svc NotificationService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Service: svc, Logger: logger}
}

func (h *Handler) Register(r gin.IRouter) {
	r.GET("/customers/:id/notifications", h.ListByCustomer)
}

func (h *Handler) ListByCustomer(c *gin.Context) {
	id, err := strconv.ParseInt(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid customer id"})
		return
	}
	audits, err := h.Service.ListByCustomer(c.Request.Context(), id)
	if err != nil {
		h.Logger.Error("list notifications failed", "customer_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}
	out := make([]notificationItem, 0, len(audits))
	for _, a := range audits {
		out = append(out, toItem(a))
	}
	c.JSON(http.StatusOK, listResponse{Notifications: out})
}

func toItem(a storage.Audit) notificationItem {
	item := notificationItem{
		EventID:          a.EventID,
		CustomerID:       a.CustomerID,
		AccountNumber:    a.AccountNumber,
		NotificationType: a.NotificationType,
		Status:           a.Status,
		EmailAddress:     a.EmailAddress,
		EmailSent:        a.EmailSent,
		EmailError:       a.EmailError,
		MobileNumber:     a.MobileNumber,
		SMSSent:          a.SMSSent,
		SMSError:         a.SMSError,
		Attempts:         a.Attempts,
		CreatedAt:        a.CreatedAt.UTC().Format(time.RFC3339),
	}
	if a.SentAt != nil {
		s := a.SentAt.UTC().Format(time.RFC3339)
		item.SentAt = &s
	}
	return item
}
