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
	"github.com/AfshinJalili/bankflow/services/customer/internal/branch"
	"github.com/AfshinJalili/bankflow/services/customer/internal/service"
	"github.com/AfshinJalili/bankflow/services/customer/internal/storage"
	"github.com/gin-gonic/gin"
)

type CustomerService interface {
	Get(ctx context.Context, id int64) (storage.Customer, error)
	GetByApplication(ctx context.Context, applicationID int64) (storage.Customer, error)
	List(ctx context.Context) ([]storage.Customer, error)
	ListByBranch(ctx context.Context, branchCode string) ([]storage.Customer, error)
	BranchCounts(ctx context.Context) ([]storage.BranchCount, error)
	UpdateContact(ctx context.Context, id int64, phone, email string) (storage.Customer, error)
	UpdateKYC(ctx context.Context, id int64, kyc banking.KYCStatus) (storage.Customer, error)
	ReassignBranch(ctx context.Context, id int64, target string) (storage.Customer, error)
}

type BranchLookup interface {
	Lookup(ctx context.Context, code string) (branch.Status, error)
}

type Handler struct {
	Service  CustomerService
	Branches BranchLookup
	Logger   *slog.Logger
}

type contactRequest struct {
	PhoneNumber string `json:"phone_number"`
	Email       string `json:"email"`
}

type kycRequest struct {
	KYCStatus string `json:"kyc_status"`
}

type branchRequest struct {
	BranchCode string `json:"branch_code"`
}

type customerItem struct {
	CustomerID      int64   `json:"customer_id"`
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
	AccountType     string  `json:"account_type"`
	CurrencyType    string  `json:"currency_type"`
	BranchCode      *string `json:"branch_code"`
	KYCStatus       string  `json:"kyc_status"`
	KYCVerifiedDate *string `json:"kyc_verified_date,omitempty"`
	Provisioned     bool    `json:"provisioned"`
	CreatedAt       string  `json:"created_at"`
}

type listCustomersResponse struct {
	Customers []customerItem `json:"customers"`
}

type branchCountItem struct {
	BranchCode string `json:"branch_code"`
	Customers  int64  `json:"customers"`
}

type branchCountsResponse struct {
	Branches []branchCountItem `json:"branches"`
}

type branchItem struct {
	BranchCode    string `json:"branch_code"`
	BranchName    string `json:"branch_name"`
	Region        string `json:"region,omitempty"`
	Province      string `json:"province,omitempty"`
	City          string `json:"city,omitempty"`
	Address       string `json:"address,omitempty"`
	ContactNumber string `json:"contact_number,omitempty"`
	Status        string `json:"status"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func New(svc CustomerService, branches BranchLookup, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Service: svc, Branches: branches, Logger: logger}
}

func (h *Handler) Register(r gin.IRouter, jwtSecret []byte) {
	r.GET("/customers", h.ListCustomers)
	r.GET("/customers/:id", h.GetCustomer)
	r.GET("/customers/:id/branch", h.GetCustomerBranch)
	r.GET("/customers/by-application/:appId", h.GetByApplication)
	r.GET("/branches/counts", h.BranchCounts)
	r.GET("/branches/:code/customers", h.ListByBranch)

	staff := r.Group("/customers/:id", auth.RequireRole(jwtSecret, auth.RoleOperator))
	staff.PUT("/contact", h.UpdateContact)
	staff.PUT("/kyc", h.UpdateKYC)
	staff.PUT("/branch", h.ReassignBranch)
}

func (h *Handler) ListCustomers(c *gin.Context) {
	customers, err := h.Service.List(c.Request.Context())
	if err != nil {
		h.handleError(c, "list customers", err)
		return
	}
	c.JSON(http.StatusOK, listCustomersResponse{Customers: toItems(customers)})
}

func (h *Handler) GetCustomer(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	customer, err := h.Service.Get(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, "get customer", err)
		return
	}
	c.JSON(http.StatusOK, toItem(customer))
}

func (h *Handler) GetByApplication(c *gin.Context) {
	id, ok := parseID(c, "appId")
	if !ok {
		return
	}
	customer, err := h.Service.GetByApplication(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, "get customer by application", err)
		return
	}
	c.JSON(http.StatusOK, toItem(customer))
}

func (h *Handler) GetCustomerBranch(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	customer, err := h.Service.Get(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, "get customer", err)
		return
	}
	if customer.BranchCode == nil {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "customer has no branch")
		return
	}
	st, err := h.Branches.Lookup(c.Request.Context(), *customer.BranchCode)
	if err != nil {
		h.handleError(c, "lookup branch", err)
		return
	}
	c.JSON(http.StatusOK, branchItem{
		BranchCode:    st.BranchCode,
		BranchName:    st.BranchName,
		Region:        st.Region,
		Province:      st.Province,
		City:          st.City,
		Address:       st.Address,
		ContactNumber: st.ContactNumber,
		Status:        string(st.Status),
	})
}

func (h *Handler) ListByBranch(c *gin.Context) {
	code := strings.ToUpper(strings.TrimSpace(c.Param("code")))
	if !branch.ValidCode(code) {
		writeError(c, http.StatusBadRequest, "INVALID_BRANCH", "invalid branch code")
		return
	}
	customers, err := h.Service.ListByBranch(c.Request.Context(), code)
	if err != nil {
		h.handleError(c, "list customers by branch", err)
		return
	}
	c.JSON(http.StatusOK, listCustomersResponse{Customers: toItems(customers)})
}

func (h *Handler) BranchCounts(c *gin.Context) {
	counts, err := h.Service.BranchCounts(c.Request.Context())
	if err != nil {
		h.handleError(c, "branch counts", err)
		return
	}
	items := make([]branchCountItem, 0, len(counts))
	for _, bc := range counts {
		items = append(items, branchCountItem{BranchCode: bc.BranchCode, Customers: bc.Customers})
	}
	c.JSON(http.StatusOK, branchCountsResponse{Branches: items})
}

func (h *Handler) UpdateContact(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req contactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid payload")
		return
	}
	customer, err := h.Service.UpdateContact(c.Request.Context(), id, req.PhoneNumber, req.Email)
	if err != nil {
		h.handleError(c, "update contact", err)
		return
	}
	c.JSON(http.StatusOK, toItem(customer))
}

func (h *Handler) UpdateKYC(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req kycRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid payload")
		return
	}
	kyc, err := banking.ParseKYCStatus(req.KYCStatus)
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid kyc_status")
		return
	}
	customer, err := h.Service.UpdateKYC(c.Request.Context(), id, kyc)
	if err != nil {
		h.handleError(c, "update kyc", err)
		return
	}
	c.JSON(http.StatusOK, toItem(customer))
}

func (h *Handler) ReassignBranch(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req branchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid payload")
		return
	}
	customer, err := h.Service.ReassignBranch(c.Request.Context(), id, req.BranchCode)
	if err != nil {
		h.handleError(c, "reassign branch", err)
		return
	}
	h.Logger.Info("branch reassigned by staff", "customer_id", id, "staff_id", auth.StaffID(c))
	c.JSON(http.StatusOK, toItem(customer))
}

func (h *Handler) handleError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(c, http.StatusNotFound, "NOT_FOUND", "customer not found")
	case errors.Is(err, branch.ErrBranchNotFound):
		writeError(c, http.StatusNotFound, "NOT_FOUND", "branch not found")
	case errors.Is(err, storage.ErrDuplicateEmail):
		writeError(c, http.StatusConflict, "DUPLICATE_EMAIL", "email already belongs to another customer")
	case errors.Is(err, branch.ErrInvalidBranch):
		writeError(c, http.StatusBadRequest, "INVALID_BRANCH", err.Error())
	case errors.Is(err, service.ErrInvalidContact):
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
	default:
		h.Logger.Error(op+" failed", "error", err)
		writeError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
	}
}

func parseID(c *gin.Context, param string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(c.Param(param)), 10, 64)
	if err != nil || id <= 0 {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid "+param)
		return 0, false
	}
	return id, true
}

func toItems(customers []storage.Customer) []customerItem {
	items := make([]customerItem, 0, len(customers))
	for _, customer := range customers {
		items = append(items, toItem(customer))
	}
	return items
}

func toItem(c storage.Customer) customerItem {
	item := customerItem{
		CustomerID:    c.ID,
		ApplicationID: c.ApplicationID,
		FirstName:     c.FirstName,
		MiddleName:    c.MiddleName,
		LastName:      c.LastName,
		PhoneNumber:   c.PhoneNumber,
		Email:         c.Email,
		Region:        c.Region,
		Province:      c.Province,
		Municipality:  c.Municipality,
		Street:        c.Street,
		IdentityType:  string(c.IdentityType),
		AccountType:   string(c.AccountType),
		CurrencyType:  string(c.CurrencyType),
		BranchCode:    c.BranchCode,
		KYCStatus:     string(c.KYCStatus),
		Provisioned:   c.Provisioned(),
		CreatedAt:     c.CreatedAt.UTC().Format(time.RFC3339),
	}
	if c.KYCVerifiedDate != nil {
		verified := c.KYCVerifiedDate.UTC().Format(time.RFC3339)
		item.KYCVerifiedDate = &verified
	}
	return item
}

func writeError(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorResponse{Code: code, Message: message})
}
