package ports

import (
	"context"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// WalletRepository defines persistence operations for wallets.
// Methods accepting pgx.Tx run inside transaction blocks with row locking so
// concurrent mutations on the same wallet serialize at the store layer.
type WalletRepository interface {
	Create(ctx context.Context, wallet *domain.Wallet) error
	GetByUserID(ctx context.Context, userID string) (*domain.Wallet, error)
	GetByUserIDForUpdate(ctx context.Context, tx pgx.Tx, userID string) (*domain.Wallet, error)
	UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, balance decimal.Decimal) error
}

// TransactionRepository defines persistence for the append-only ledger.
// Entries are created once and never mutated.
type TransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, transaction *domain.Transaction) error
	// ListForUserUpTo returns every transaction where the user is a party
	// (source or destination) with CreatedAt <= asOf, in insertion order.
	ListForUserUpTo(ctx context.Context, userID string, asOf time.Time) ([]domain.Transaction, error)
	// ListRecent returns the user's most recent transactions, newest first.
	ListRecent(ctx context.Context, userID string, limit int) ([]domain.Transaction, error)
}

// UserRepository defines persistence operations for API accounts.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
