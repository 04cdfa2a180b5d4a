package ports

import (
	"context"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WalletService is the ledger engine contract. Every operation returns either
// a success value or a tagged *apperror.AppError; callers can distinguish all
// failure kinds without inspecting message text.
type WalletService interface {
	CreateWallet(ctx context.Context, userID string) (*domain.Wallet, error)
	Deposit(ctx context.Context, userID string, amount decimal.Decimal) (*domain.Wallet, error)
	Withdraw(ctx context.Context, userID string, amount decimal.Decimal) (*domain.Wallet, error)
	// Transfer deliberately returns no balances: the response must not leak
	// either party's resulting balance.
	Transfer(ctx context.Context, sourceUserID, destinationUserID string, amount decimal.Decimal) error
	GetBalance(ctx context.Context, userID string) (*domain.BalanceResponse, error)
	GetHistoricalBalance(ctx context.Context, userID string, asOf time.Time) (*domain.BalanceResponse, error)
	ListTransactions(ctx context.Context, userID string, limit int) ([]domain.Transaction, error)
}

// AuthService defines authentication business logic.
type AuthService interface {
	Signup(ctx context.Context, username, password string) (*domain.User, error)
	Login(ctx context.Context, username, password string) (string, time.Time, error) // token, expiry, error
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(userID uuid.UUID, username string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	UserID   uuid.UUID
	Username string
}

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}
