package ports

import (
	"context"

	"wallet-ledger/internal/core/domain"
)

// WalletCache is the read-through cache over the ledger store. It holds two
// logical entries per user: the Wallet projection (long TTL) and the
// BalanceResponse projection (short TTL). Lookups return (nil, nil) on miss;
// absence is never cached.
type WalletCache interface {
	GetWallet(ctx context.Context, userID string) (*domain.Wallet, error)
	SetWallet(ctx context.Context, wallet *domain.Wallet) error
	GetBalance(ctx context.Context, userID string) (*domain.BalanceResponse, error)
	SetBalance(ctx context.Context, balance *domain.BalanceResponse) error
	// Invalidate evicts both entries for each given user. Mutations call this
	// after the store commit and before returning, so a caller never observes
	// a balance older than its own write.
	Invalidate(ctx context.Context, userIDs ...string) error
}
