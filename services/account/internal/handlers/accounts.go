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
	"github.com/AfshinJalili/bankflow/services/account/internal/service"
	"github.com/AfshinJalili/bankflow/services/account/internal/storage"
	"github.com/gin-gonic/gin"
)

type AccountService interface {
	Get(ctx context.Context, accountNumber int64) (storage.Account, error)
	List(ctx context.Context) ([]storage.Account, error)
	ListByCustomer(ctx context.Context, customerID int64) ([]storage.Account, error)
	ListByBranch(ctx context.Context, branchCode string) ([]storage.Account, error)
	UpdateStatus(ctx context.Context, accountNumber int64, status banking.AccountStatus) (storage.Account, error)
}

type Handler struct {
	Service AccountService
	Logger  *slog.Logger
}

type statusRequest struct {
	AccountStatus string `json:"account_status"`
}

type accountItem struct {
	AccountNumber  int64   `json:"account_number"`
	CustomerID     int64   `json:"customer_id"`
	CustomerName   string  `json:"customer_name"`
	BranchCode     *string `json:"branch_code"`
	AccountType    string  `json:"account_type"`
	CurrencyType   string  `json:"currency_type,omitempty"`
	InitialBalance string  `json:"initial_balance"`
	InterestRate   string  `json:"interest_rate"`
	AccountStatus  string  `json:"account_status"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

type listAccountsResponse struct {
	Accounts []accountItem `json:"accounts"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func New(svc AccountService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Service: svc, Logger: logger}
}

func (h *Handler) Register(r gin.IRouter, jwtSecret []byte) {
	r.GET("/accounts", h.ListAccounts)
	r.GET("/accounts/:number", h.GetAccount)
	r.GET("/customers/:id/accounts", h.ListByCustomer)
	r.GET("/branches/:code/accounts", h.ListByBranch)
	r.PUT("/accounts/:number/status", auth.RequireRole(jwtSecret, auth.RoleOperator), h.UpdateStatus)
}

func (h *Handler) ListAccounts(c *gin.Context) {
	accounts, err := h.Service.List(c.Request.Context())
	if err != nil {
		h.handleError(c, "list accounts", err)
		return
	}
	c.JSON(http.StatusOK, listAccountsResponse{Accounts: toItems(accounts)})
}

func (h *Handler) GetAccount(c *gin.Context) {
	number, ok := parseID(c, "number")
	if !ok {
		return
	}
	account, err := h.Service.Get(c.Request.Context(), number)
	if err != nil {
		h.handleError(c, "get account", err)
		return
	}
	c.JSON(http.StatusOK, toItem(account))
}

func (h *Handler) ListByCustomer(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	accounts, err := h.Service.ListByCustomer(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, "list accounts by customer", err)
		return
	}
	c.JSON(http.StatusOK, listAccountsResponse{Accounts: toItems(accounts)})
}

func (h *Handler) ListByBranch(c *gin.Context) {
	code := strings.TrimSpace(c.Param("code"))
	if code == "" {
		writeError(c, http.StatusBadRequest, "INVALID_BRANCH", "branch code required")
		return
	}
	accounts, err := h.Service.ListByBranch(c.Request.Context(), code)
	if err != nil {
		h.handleError(c, "list accounts by branch", err)
		return
	}
	c.JSON(http.StatusOK, listAccountsResponse{Accounts: toItems(accounts)})
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	number, ok := parseID(c, "number")
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid payload")
		return
	}
	status, err := banking.ParseAccountStatus(req.AccountStatus)
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid account_status")
		return
	}
	account, err := h.Service.UpdateStatus(c.Request.Context(), number, status)
	if err != nil {
		h.handleError(c, "update account status", err)
		return
	}
	h.Logger.Info("account status changed by staff", "account_number", number, "status", status, "staff_id", auth.StaffID(c))
	c.JSON(http.StatusOK, toItem(account))
}

func (h *Handler) handleError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(c, http.StatusNotFound, "NOT_FOUND", "bank account not found")
	case errors.Is(err, service.ErrAccountClosed):
		writeError(c, http.StatusConflict, "INVALID_TRANSITION", "bank account is closed")
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

func toItems(accounts []storage.Account) []accountItem {
	items := make([]accountItem, 0, len(accounts))
	for _, a := range accounts {
		items = append(items, toItem(a))
	}
	return items
}

func toItem(a storage.Account) accountItem {
	name := strings.Join(strings.Fields(a.FirstName+" "+a.MiddleName+" "+a.LastName), " ")
	return accountItem{
		AccountNumber:  a.AccountNumber,
		CustomerID:     a.CustomerID,
		CustomerName:   name,
		BranchCode:     a.BranchCode,
		AccountType:    string(a.AccountType),
		CurrencyType:   a.CurrencyType,
		InitialBalance: a.InitialBalance.StringFixed(2),
		InterestRate:   a.InterestRate.StringFixed(2),
		AccountStatus:  string(a.Status),
		CreatedAt:      a.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      a.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func writeError(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorResponse{Code: code, Message: message})
}
