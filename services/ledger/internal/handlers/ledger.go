package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/AfshinJalili/bankflow/services/ledger/internal/service"
	"github.com/AfshinJalili/bankflow/services/ledger/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type LedgerService interface {
	Deposit(ctx context.Context, accountNumber int64, amount decimal.Decimal, description, reference string) (storage.Entry, error)
	Withdraw(ctx context.Context, accountNumber int64, amount decimal.Decimal, description, reference string) (storage.Entry, error)
	Balance(ctx context.Context, accountNumber int64) (decimal.Decimal, error)
	History(ctx context.Context, accountNumber int64) ([]storage.Entry, error)
	HistoryBetween(ctx context.Context, accountNumber int64, from, to time.Time) ([]storage.Entry, error)
	Get(ctx context.Context, transactionID string) (storage.Entry, error)
}

type Handler struct {
	Service LedgerService
	Logger  *slog.Logger
}

type postingRequest struct {
	Amount          decimal.Decimal `json:"amount"`
	Description     string          `json:"description"`
	ReferenceNumber string          `json:"reference_number"`
}

type entryItem struct {
	TransactionID   string `json:"transaction_id"`
	AccountNumber   int64  `json:"account_number"`
	TransactionType string `json:"transaction_type"`
	Amount          string `json:"amount"`
	BalanceBefore   string `json:"balance_before"`
	BalanceAfter    string `json:"balance_after"`
	Status          string `json:"status"`
	Description     string `json:"description,omitempty"`
	ReferenceNumber string `json:"reference_number,omitempty"`
	TransactionDate string `json:"transaction_date"`
}

type balanceResponse struct {
	AccountNumber int64  `json:"account_number"`
	Balance       string `json:"balance"`
}

type historyResponse struct {
	Transactions []entryItem `json:"transactions"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func New(svc LedgerService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Service: svc, Logger: logger}
}

func (h *Handler) Register(r gin.IRouter) {
	r.POST("/accounts/:number/deposits", h.Deposit)
	r.POST("/accounts/:number/withdrawals", h.Withdraw)
	r.GET("/accounts/:number/balance", h.Balance)
	r.GET("/accounts/:number/transactions", h.History)
	r.GET("/transactions/:id", h.GetTransaction)
}

func (h *Handler) Deposit(c *gin.Context) {
	h.post(c, "deposit", h.Service.Deposit)
}

func (h *Handler) Withdraw(c *gin.Context) {
	h.post(c, "withdraw", h.Service.Withdraw)
}

type postFunc func(ctx context.Context, accountNumber int64, amount decimal.Decimal, description, reference string) (storage.Entry, error)

func (h *Handler) post(c *gin.Context, op string, fn postFunc) {
	number, ok := parseAccountNumber(c)
	if !ok {
		return
	}
	var req postingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid payload")
		return
	}
	entry, err := fn(c.Request.Context(), number, req.Amount, req.Description, req.ReferenceNumber)
	if err != nil {
		h.handleError(c, op, err)
		return
	}
	c.JSON(http.StatusCreated, toItem(entry))
}

func (h *Handler) Balance(c *gin.Context) {
	number, ok := parseAccountNumber(c)
	if !ok {
		return
	}
	balance, err := h.Service.Balance(c.Request.Context(), number)
	if err != nil {
		h.handleError(c, "balance", err)
		return
	}
	c.JSON(http.StatusOK, balanceResponse{AccountNumber: number, Balance: balance.StringFixed(2)})
}

// History lists entries newest first, optionally limited to [from, to]
// given as RFC 3339 timestamps.
func (h *Handler) History(c *gin.Context) {
	number, ok := parseAccountNumber(c)
	if !ok {
		return
	}
	fromRaw, toRaw := strings.TrimSpace(c.Query("from")), strings.TrimSpace(c.Query("to"))

	var (
		entries []storage.Entry
		err     error
	)
	if fromRaw == "" && toRaw == "" {
		entries, err = h.Service.History(c.Request.Context(), number)
	} else {
		from, fromErr := time.Parse(time.RFC3339, fromRaw)
		to, toErr := time.Parse(time.RFC3339, toRaw)
		if fromErr != nil || toErr != nil {
			writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "from and to must both be RFC 3339 timestamps")
			return
		}
		entries, err = h.Service.HistoryBetween(c.Request.Context(), number, from, to)
	}
	if err != nil {
		h.handleError(c, "history", err)
		return
	}

	items := make([]entryItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, toItem(e))
	}
	c.JSON(http.StatusOK, historyResponse{Transactions: items})
}

func (h *Handler) GetTransaction(c *gin.Context) {
	entry, err := h.Service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, "get transaction", err)
		return
	}
	c.JSON(http.StatusOK, toItem(entry))
}

func (h *Handler) handleError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidAmount):
		writeError(c, http.StatusBadRequest, "INVALID_AMOUNT", "amount must be positive with at most two decimal places")
	case errors.Is(err, service.ErrInsufficientFunds):
		writeError(c, http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS", err.Error())
	case errors.Is(err, service.ErrAccountInactive):
		writeError(c, http.StatusUnprocessableEntity, "ACCOUNT_INACTIVE", "account is not active")
	case errors.Is(err, storage.ErrAccountNotFound):
		writeError(c, http.StatusNotFound, "NOT_FOUND", "account not found")
	case errors.Is(err, storage.ErrEntryNotFound):
		writeError(c, http.StatusNotFound, "NOT_FOUND", "transaction not found")
	default:
		h.Logger.Error(op+" failed", "error", err)
		writeError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
	}
}

func parseAccountNumber(c *gin.Context) (int64, bool) {
	number, err := strconv.ParseInt(strings.TrimSpace(c.Param("number")), 10, 64)
	if err != nil || number <= 0 {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid account number")
		return 0, false
	}
	return number, true
}

func toItem(e storage.Entry) entryItem {
	return entryItem{
		TransactionID:   e.TransactionID,
		AccountNumber:   e.AccountNumber,
		TransactionType: string(e.Type),
		Amount:          e.Amount.StringFixed(2),
		BalanceBefore:   e.BalanceBefore.StringFixed(2),
		BalanceAfter:    e.BalanceAfter.StringFixed(2),
		Status:          string(e.Status),
		Description:     e.Description,
		ReferenceNumber: e.ReferenceNumber,
		TransactionDate: e.TransactionDate.UTC().Format(time.RFC3339),
	}
}

func writeError(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorResponse{Code: code, Message: message})
}
