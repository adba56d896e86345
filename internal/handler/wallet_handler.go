package handler

import (
	"net/http"

	"memberhub/internal/apperr"
	"memberhub/internal/domain"
	"memberhub/internal/middleware"
	"memberhub/internal/models"
	"memberhub/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

type WalletHandler struct {
	ledger *service.LedgerService
}

func NewWalletHandler(ledger *service.LedgerService) *WalletHandler {
	return &WalletHandler{ledger: ledger}
}

// GetBalance returns the caller's credit balance.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	balance, err := h.ledger.Balance(c.Request.Context(), middleware.GetAccountID(c))
	if err != nil {
		respondError(c, err, "wallet error")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"balance":   balance,
		"formatted": domain.FormatCredits(balance),
	})
}

func (h *WalletHandler) ListTransactions(c *gin.Context) {
	limit, offset := parseWindow(c)
	list, err := h.ledger.History(c.Request.Context(), middleware.GetAccountID(c), limit, offset)
	if err != nil {
		respondError(c, err, "could not list transactions")
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": list, "limit": limit, "offset": offset})
}

type TransferRequest struct {
	ToAccountID uint   `json:"to_account_id" binding:"required"`
	Amount      int64  `json:"amount"`
	Description string `json:"description" binding:"max=255"`
}

// Transfer handles POST /wallet/transfers.
func (h *WalletHandler) Transfer(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	debit, err := h.ledger.Transfer(c.Request.Context(), middleware.GetAccountID(c), req.ToAccountID, req.Amount, req.Description)
	if err != nil {
		respondError(c, err, "transfer failed")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"transaction": debit})
}

// GetTransfer returns both rows of a transfer or exchange. Only the parties and staff may read it.
func (h *WalletHandler) GetTransfer(c *gin.Context) {
	rows, err := h.ledger.Pair(c.Request.Context(), c.Param("correlation_id"))
	if err != nil {
		respondError(c, err, "could not load transfer")
		return
	}
	accountID := middleware.GetAccountID(c)
	party := lo.ContainsBy(rows, func(t models.Transaction) bool {
		return t.FromAccountID == accountID || t.ToAccountID == accountID
	})
	if !party && !domain.IsStaff(middleware.GetRole(c)) {
		respondError(c, apperr.ErrNotFound, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"correlation_id": rows[0].CorrelationID, "transactions": rows})
}
