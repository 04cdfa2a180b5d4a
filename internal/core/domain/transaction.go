package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType categorizes a ledger entry.
type TransactionType string

const (
	TransactionTypeDeposit  TransactionType = "DEPOSIT"
	TransactionTypeWithdraw TransactionType = "WITHDRAW"
	TransactionTypeTransfer TransactionType = "TRANSFER"
)

// TransactionStatus is the lifecycle state of a ledger entry. Entries are only
// written after the balance mutation commits, so the status is always COMPLETED.
type TransactionStatus string

const (
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
)

// Transaction descriptions recorded with each ledger entry.
const (
	DescriptionDeposit  = "deposit completed"
	DescriptionWithdraw = "withdrawal completed"
	DescriptionTransfer = "transfer completed"
)

// Transaction is an immutable ledger entry for one completed balance-affecting
// event. For DEPOSIT and WITHDRAW the SourceUserID is the wallet owner and
// DestinationUserID is nil; only TRANSFER records both parties.
type Transaction struct {
	ID                uuid.UUID         `json:"id"`
	Type              TransactionType   `json:"type"`
	Amount            decimal.Decimal   `json:"amount"`
	Currency          string            `json:"currency"`
	CreatedAt         time.Time         `json:"created_at"`
	SourceUserID      string            `json:"source_user_id"`
	DestinationUserID *string           `json:"destination_user_id,omitempty"`
	Status            TransactionStatus `json:"status"`
	Description       string            `json:"description"`
}

// NewTransaction creates a completed ledger entry in the default currency.
func NewTransaction(txType TransactionType, amount decimal.Decimal, sourceUserID string, destinationUserID *string, description string) *Transaction {
	return &Transaction{
		ID:                uuid.New(),
		Type:              txType,
		Amount:            amount,
		Currency:          DefaultCurrency,
		CreatedAt:         time.Now().UTC(),
		SourceUserID:      sourceUserID,
		DestinationUserID: destinationUserID,
		Status:            TransactionStatusCompleted,
		Description:       description,
	}
}

// SignedAmountFor returns the contribution of this entry to userID's balance:
// positive for deposits and incoming transfers, negative for withdrawals and
// outgoing transfers, zero if the user is not a party.
func (t *Transaction) SignedAmountFor(userID string) decimal.Decimal {
	switch t.Type {
	case TransactionTypeDeposit:
		if t.SourceUserID == userID {
			return t.Amount
		}
	case TransactionTypeWithdraw:
		if t.SourceUserID == userID {
			return t.Amount.Neg()
		}
	case TransactionTypeTransfer:
		if t.SourceUserID == userID {
			return t.Amount.Neg()
		}
		if t.DestinationUserID != nil && *t.DestinationUserID == userID {
			return t.Amount
		}
	}
	return decimal.Zero
}
