package handler

import (
	"strconv"
	"time"

	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// WalletHandler handles wallet and ledger endpoints.
type WalletHandler struct {
	walletSvc ports.WalletService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletSvc ports.WalletService) *WalletHandler {
	return &WalletHandler{walletSvc: walletSvc}
}

// CreateWallet handles POST /api/v1/wallets.
func (h *WalletHandler) CreateWallet(c *gin.Context) {
	var req dto.CreateWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	wallet, err := h.walletSvc.CreateWallet(c.Request.Context(), req.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toWalletResponse(wallet))
}

// Deposit handles POST /api/v1/wallets/deposit.
func (h *WalletHandler) Deposit(c *gin.Context) {
	var req dto.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	wallet, err := h.walletSvc.Deposit(c.Request.Context(), req.UserID, req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toWalletResponse(wallet))
}

// Withdraw handles POST /api/v1/wallets/withdraw.
func (h *WalletHandler) Withdraw(c *gin.Context) {
	var req dto.WithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	wallet, err := h.walletSvc.Withdraw(c.Request.Context(), req.UserID, req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toWalletResponse(wallet))
}

// Transfer handles POST /api/v1/wallets/transfer. The response carries no
// balances: neither party's resulting balance is disclosed.
func (h *WalletHandler) Transfer(c *gin.Context) {
	var req dto.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	err := h.walletSvc.Transfer(c.Request.Context(), req.SourceUserID, req.DestinationUserID, req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"status": "completed"})
}

// GetBalance handles GET /api/v1/wallets/:userId/balance.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	userID := c.Param("userId")

	balance, err := h.walletSvc.GetBalance(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toBalanceResponse(balance))
}

// GetHistoricalBalance handles GET /api/v1/wallets/:userId/balance/history?at=RFC3339.
func (h *WalletHandler) GetHistoricalBalance(c *gin.Context) {
	userID := c.Param("userId")

	atParam := c.Query("at")
	if atParam == "" {
		response.Error(c, apperror.Validation("query parameter 'at' is required"))
		return
	}
	asOf, err := time.Parse(time.RFC3339, atParam)
	if err != nil {
		response.Error(c, apperror.Validation("query parameter 'at' must be an RFC3339 timestamp"))
		return
	}

	balance, err := h.walletSvc.GetHistoricalBalance(c.Request.Context(), userID, asOf)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toBalanceResponse(balance))
}

// ListTransactions handles GET /api/v1/wallets/:userId/transactions?limit=N.
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	userID := c.Param("userId")

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 1000 {
			response.Error(c, apperror.Validation("query parameter 'limit' must be a positive integer"))
			return
		}
		limit = parsed
	}

	entries, err := h.walletSvc.ListTransactions(c.Request.Context(), userID, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.TransactionResponse, 0, len(entries))
	for i := range entries {
		items = append(items, toTransactionResponse(&entries[i]))
	}

	response.OK(c, dto.TransactionListResponse{
		Items: items,
		Count: len(items),
	})
}

func toWalletResponse(w *domain.Wallet) dto.WalletResponse {
	return dto.WalletResponse{
		ID:        w.ID.String(),
		UserID:    w.UserID,
		Balance:   w.Balance.String(),
		Currency:  w.Currency,
		CreatedAt: w.CreatedAt.Format(time.RFC3339),
		UpdatedAt: w.UpdatedAt.Format(time.RFC3339),
	}
}

func toBalanceResponse(b *domain.BalanceResponse) dto.BalanceResponse {
	return dto.BalanceResponse{
		UserID:   b.UserID,
		Balance:  b.Balance.String(),
		Currency: b.Currency,
		Degraded: b.Degraded,
	}
}

func toTransactionResponse(t *domain.Transaction) dto.TransactionResponse {
	return dto.TransactionResponse{
		ID:                t.ID.String(),
		Type:              string(t.Type),
		Amount:            t.Amount.String(),
		Currency:          t.Currency,
		SourceUserID:      t.SourceUserID,
		DestinationUserID: t.DestinationUserID,
		Status:            string(t.Status),
		Description:       t.Description,
		CreatedAt:         t.CreatedAt.Format(time.RFC3339),
	}
}
