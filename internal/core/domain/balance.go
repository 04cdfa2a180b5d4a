package domain

import "github.com/shopspring/decimal"

// BalanceResponse is the balance projection served to callers and held in the
// short-TTL cache entry. Degraded is set only by the resilience fallback: the
// balance it carries is a placeholder, not a true balance.
type BalanceResponse struct {
	UserID   string          `json:"user_id"`
	Balance  decimal.Decimal `json:"balance"`
	Currency string          `json:"currency"`
	Degraded bool            `json:"degraded,omitempty"`
}

// NewBalanceResponse builds the balance projection for a wallet.
func NewBalanceResponse(w *Wallet) *BalanceResponse {
	return &BalanceResponse{
		UserID:   w.UserID,
		Balance:  w.Balance,
		Currency: w.Currency,
	}
}

// DegradedBalance is the zero-balance placeholder returned when the ledger
// store is unreachable and the circuit is open or retries are exhausted.
func DegradedBalance(userID string) *BalanceResponse {
	return &BalanceResponse{
		UserID:   userID,
		Balance:  decimal.Zero,
		Currency: DefaultCurrency,
		Degraded: true,
	}
}
