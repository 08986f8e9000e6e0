package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/AfshinJalili/bankflow/libs/auth"
	"github.com/AfshinJalili/bankflow/libs/banking"
	"github.com/AfshinJalili/bankflow/services/application/internal/lifecycle"
	"github.com/AfshinJalili/bankflow/services/application/internal/storage"
	"github.com/AfshinJalili/bankflow/services/application/internal/validation"
	"github.com/gin-gonic/gin"
)

type ApplicationService interface {
	Create(ctx context.Context, in validation.Applicant) (storage.Application, error)
	Get(ctx context.Context, id int64) (storage.Application, error)
	List(ctx context.Context) ([]storage.Application, error)
	ListByStatus(ctx context.Context, status lifecycle.Status) ([]storage.Application, error)
	Submit(ctx context.Context, id int64) (storage.Application, error)
	StartReview(ctx context.Context, id int64, staffID string) (storage.Application, error)
	Approve(ctx context.Context, id int64, staffID string) (storage.Application, error)
	Reject(ctx context.Context, id int64, staffID string) (storage.Application, error)
	Cancel(ctx context.Context, id int64) (storage.Application, error)
	SetKYC(ctx context.Context, id int64, kyc banking.KYCStatus) (storage.Application, error)
}

type Handler struct {
	Service ApplicationService
	Logger  *slog.Logger
}

type createApplicationRequest struct {
	FirstName    string `json:"first_name"`
	MiddleName   string `json:"middle_name"`
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

type kycRequest struct {
	KYCStatus string `json:"kyc_status"`
}

type applicationItem struct {
	ApplicationID   int64   `json:"application_id"`
	FirstName       string  `json:"first_name"`
	MiddleName      string  `json:"middle_name,omitempty"`
	LastName        string  `json:"last_name"`
	PhoneNumber     string  `json:"phone_number"`
	Email           string  `json:"email"`
	Region          string  `json:"region,omitempty"`
	Province        string  `json:"province,omitempty"`
	Municipality    string  `json:"municipality,omitempty"`
	Street          string  `json:"street,omitempty"`
	IdentityType    string  `json:"identity_type"`
	IDRefNumber     string  `json:"id_ref_number"`
	AccountType     string  `json:"account_type"`
	CurrencyType    string  `json:"currency_type"`
	ApplicationDate string  `json:"application_date"`
	Status          string  `json:"status"`
	KYCStatus       string  `json:"kyc_status"`
	ReviewedBy      *string `json:"reviewed_by,omitempty"`
	UpdatedAt       string  `json:"updated_at"`
}

type listApplicationsResponse struct {
	Applications []applicationItem `json:"applications"`
}

type errorResponse struct {
	Code    string                  `json:"code"`
	Message string                  `json:"message"`
	Fields  []validation.FieldError `json:"fields,omitempty"`
}

func New(service ApplicationService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Service: service, Logger: logger}
}

// Register mounts the public intake routes behind intake (for example a rate
// limiter) and the review routes behind the operator role.
func (h *Handler) Register(r gin.IRouter, jwtSecret []byte, intake ...gin.HandlerFunc) {
	r.POST("/applications", append(intake, h.CreateApplication)...)
	r.GET("/applications", h.ListApplications)
	r.GET("/applications/:id", h.GetApplication)

	staff := r.Group("/applications/:id", auth.RequireRole(jwtSecret, auth.RoleOperator))
	staff.POST("/submit", h.action(func(ctx context.Context, id int64, _ string) (storage.Application, error) {
		return h.Service.Submit(ctx, id)
	}))
	staff.POST("/review", h.action(h.Service.StartReview))
	staff.POST("/approve", h.action(h.Service.Approve))
	staff.POST("/reject", h.action(h.Service.Reject))
	staff.POST("/cancel", h.action(func(ctx context.Context, id int64, _ string) (storage.Application, error) {
		return h.Service.Cancel(ctx, id)
	}))
	staff.PUT("/kyc", h.UpdateKYC)
}

func (h *Handler) CreateApplication(c *gin.Context) {
	var req createApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid payload", nil)
		return
	}

	app, err := h.Service.Create(c.Request.Context(), validation.Applicant{
		FirstName:    req.FirstName,
		MiddleName:   req.MiddleName,
		LastName:     req.LastName,
		PhoneNumber:  req.PhoneNumber,
		Email:        req.Email,
		Region:       req.Region,
		Province:     req.Province,
		Municipality: req.Municipality,
		Street:       req.Street,
		IdentityType: req.IdentityType,
		IDRefNumber:  req.IDRefNumber,
		AccountType:  req.AccountType,
		CurrencyType: req.CurrencyType,
	})
	if err != nil {
		h.handleError(c, "create application", err)
		return
	}
	c.JSON(http.StatusCreated, toItem(app))
}

func (h *Handler) ListApplications(c *gin.Context) {
	var (
		apps []storage.Application
		err  error
	)
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status, parseErr := lifecycle.ParseStatus(raw)
		if parseErr != nil {
			writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid status", nil)
			return
		}
		apps, err = h.Service.ListByStatus(c.Request.Context(), status)
	} else {
		apps, err = h.Service.List(c.Request.Context())
	}
	if err != nil {
		h.handleError(c, "list applications", err)
		return
	}

	items := make([]applicationItem, 0, len(apps))
	for _, app := range apps {
		items = append(items, toItem(app))
	}
	c.JSON(http.StatusOK, listApplicationsResponse{Applications: items})
}

func (h *Handler) GetApplication(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	app, err := h.Service.Get(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, "get application", err)
		return
	}
	c.JSON(http.StatusOK, toItem(app))
}

func (h *Handler) UpdateKYC(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req kycRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid payload", nil)
		return
	}
	kyc, err := banking.ParseKYCStatus(req.KYCStatus)
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid kyc_status", nil)
		return
	}
	app, err := h.Service.SetKYC(c.Request.Context(), id, kyc)
	if err != nil {
		h.handleError(c, "update kyc", err)
		return
	}
	c.JSON(http.StatusOK, toItem(app))
}

func (h *Handler) action(fn func(ctx context.Context, id int64, staffID string) (storage.Application, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		app, err := fn(c.Request.Context(), id, auth.StaffID(c))
		if err != nil {
			h.handleError(c, "application transition", err)
			return
		}
		c.JSON(http.StatusOK, toItem(app))
	}
}

func (h *Handler) handleError(c *gin.Context, op string, err error) {
	var verrs validation.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid application", verrs)
	case errors.Is(err, storage.ErrNotFound):
		writeError(c, http.StatusNotFound, "NOT_FOUND", "application not found", nil)
	case errors.Is(err, storage.ErrDuplicateEmail):
		writeError(c, http.StatusConflict, "DUPLICATE_EMAIL", "email already used by an open application", nil)
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		writeError(c, http.StatusConflict, "INVALID_TRANSITION", err.Error(), nil)
	default:
		h.Logger.Error(op+" failed", "error", err)
		writeError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error", nil)
	}
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil || id <= 0 {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid application id", nil)
		return 0, false
	}
	return id, true
}

func toItem(app storage.Application) applicationItem {
	return applicationItem{
		ApplicationID:   app.ID,
		FirstName:       app.FirstName,
		MiddleName:      app.MiddleName,
		LastName:        app.LastName,
		PhoneNumber:     app.PhoneNumber,
		Email:           app.Email,
		Region:          app.Region,
		Province:        app.Province,
		Municipality:    app.Municipality,
		Street:          app.Street,
		IdentityType:    string(app.IdentityType),
		IDRefNumber:     app.IDRefNumber,
		AccountType:     string(app.AccountType),
		CurrencyType:    string(app.CurrencyType),
		ApplicationDate: app.ApplicationDate.UTC().Format(time.RFC3339),
		Status:          string(app.Status),
		KYCStatus:       string(app.KYCStatus),
		ReviewedBy:      app.ReviewedBy,
		UpdatedAt:       app.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func writeError(c *gin.Context, status int, code, message string, fields []validation.FieldError) {
	c.JSON(status, errorResponse{Code: code, Message: message, Fields: fields})
}
