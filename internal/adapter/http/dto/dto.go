package dto

import (
	"github.com/shopspring/decimal"
)

// SignupRequest is the request body for account creation.
type SignupRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50,safe_id"`
	Password string `json:"password" binding:"required,min=8,max=128"`
}

// LoginRequest is the request body for login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// SignupResponse is the response body for successful account creation.
type SignupResponse struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// CreateWalletRequest is the request body for wallet provisioning.
type CreateWalletRequest struct {
	UserID string `json:"user_id" binding:"required,min=1,max=100,safe_id"`
}

// DepositRequest is the request body for a deposit.
type DepositRequest struct {
	UserID string          `json:"user_id" binding:"required,safe_id"`
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

// WithdrawalRequest is the request body for a withdrawal.
type WithdrawalRequest struct {
	UserID string          `json:"user_id" binding:"required,safe_id"`
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

// TransferRequest is the request body for a transfer between wallets.
type TransferRequest struct {
	SourceUserID      string          `json:"source_user_id" binding:"required,safe_id"`
	DestinationUserID string          `json:"destination_user_id" binding:"required,safe_id"`
	Amount            decimal.Decimal `json:"amount" binding:"required"`
}

// WalletResponse is the response body for wallet state.
type WalletResponse struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Balance   string `json:"balance"`
	Currency  string `json:"currency"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// BalanceResponse is the response body for balance queries. Degraded marks a
// placeholder served while the ledger store is unreachable.
type BalanceResponse struct {
	UserID   string `json:"user_id"`
	Balance  string `json:"balance"`
	Currency string `json:"currency"`
	Degraded bool   `json:"degraded,omitempty"`
}

// TransactionResponse is the response body for one ledger entry.
type TransactionResponse struct {
	ID                string  `json:"id"`
	Type              string  `json:"type"`
	Amount            string  `json:"amount"`
	Currency          string  `json:"currency"`
	SourceUserID      string  `json:"source_user_id"`
	DestinationUserID *string `json:"destination_user_id,omitempty"`
	Status            string  `json:"status"`
	Description       string  `json:"description"`
	CreatedAt         string  `json:"created_at"`
}

// TransactionListResponse wraps a transaction history page.
type TransactionListResponse struct {
	Items []TransactionResponse `json:"items"`
	Count int                   `json:"count"`
}
