package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is the single currency the service operates in today.
// TODO: multi-currency support needs a currency column per transaction leg.
const DefaultCurrency = "BRL"

// Wallet is the mutable current-balance record for one user. The balance is a
// projection of the transaction log; both are updated in the same database
// transaction so they never diverge.
type Wallet struct {
	ID        uuid.UUID       `json:"id"`
	UserID    string          `json:"user_id"`
	Balance   decimal.Decimal `json:"balance"`
	Currency  string          `json:"currency"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewWallet creates a zero-balance wallet for the given user.
func NewWallet(userID string) *Wallet {
	now := time.Now().UTC()
	return &Wallet{
		ID:        uuid.New(),
		UserID:    userID,
		Balance:   decimal.Zero,
		Currency:  DefaultCurrency,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CanDebit reports whether the wallet holds at least amount.
func (w *Wallet) CanDebit(amount decimal.Decimal) bool {
	return w.Balance.Cmp(amount) >= 0
}
