package service

import (
	"context"
	"errors"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/resilience"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ResilientWalletService decorates a WalletService with retry and a shared
// circuit breaker. Transient store failures are retried with backoff; when the
// windowed failure rate trips the breaker, calls short-circuit straight to the
// per-operation fallback without touching the store. Business errors pass
// through untouched and count as successes for the breaker.
type ResilientWalletService struct {
	inner   ports.WalletService
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryPolicy
	log     zerolog.Logger
}

// NewResilientWalletService wraps inner with the given retry policy and breaker.
func NewResilientWalletService(
	inner ports.WalletService,
	breaker *resilience.CircuitBreaker,
	retry resilience.RetryPolicy,
	log zerolog.Logger,
) *ResilientWalletService {
	return &ResilientWalletService{
		inner:   inner,
		breaker: breaker,
		retry:   retry,
		log:     log,
	}
}

// CreateWallet passes through: provisioning is not retried so a slow first
// attempt cannot race its own retry into a duplicate-wallet conflict.
func (s *ResilientWalletService) CreateWallet(ctx context.Context, userID string) (*domain.Wallet, error) {
	return s.inner.CreateWallet(ctx, userID)
}

// Deposit retries transient failures; when the breaker is open or the retry
// budget is exhausted, the caller gets ServiceUnavailable and must resubmit.
func (s *ResilientWalletService) Deposit(ctx context.Context, userID string, amount decimal.Decimal) (*domain.Wallet, error) {
	var wallet *domain.Wallet
	err := s.execute(ctx, "deposit", func() error {
		var opErr error
		wallet, opErr = s.inner.Deposit(ctx, userID, amount)
		return opErr
	})
	if s.shouldFallback(err) {
		return nil, apperror.ErrServiceUnavailable()
	}
	return wallet, err
}

// Withdraw follows the same policy as Deposit.
func (s *ResilientWalletService) Withdraw(ctx context.Context, userID string, amount decimal.Decimal) (*domain.Wallet, error) {
	var wallet *domain.Wallet
	err := s.execute(ctx, "withdraw", func() error {
		var opErr error
		wallet, opErr = s.inner.Withdraw(ctx, userID, amount)
		return opErr
	})
	if s.shouldFallback(err) {
		return nil, apperror.ErrServiceUnavailable()
	}
	return wallet, err
}

// Transfer follows the same policy as Deposit.
func (s *ResilientWalletService) Transfer(ctx context.Context, sourceUserID, destinationUserID string, amount decimal.Decimal) error {
	err := s.execute(ctx, "transfer", func() error {
		return s.inner.Transfer(ctx, sourceUserID, destinationUserID, amount)
	})
	if s.shouldFallback(err) {
		return apperror.ErrServiceUnavailable()
	}
	return err
}

// GetBalance degrades instead of failing: when the store is unreachable the
// caller receives a zero-balance placeholder flagged as degraded.
func (s *ResilientWalletService) GetBalance(ctx context.Context, userID string) (*domain.BalanceResponse, error) {
	var balance *domain.BalanceResponse
	err := s.execute(ctx, "get_balance", func() error {
		var opErr error
		balance, opErr = s.inner.GetBalance(ctx, userID)
		return opErr
	})
	if s.shouldFallback(err) {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("serving degraded balance")
		return domain.DegradedBalance(userID), nil
	}
	return balance, err
}

// GetHistoricalBalance falls back to the current balance when the ledger replay
// is unavailable; if that is also unreachable, GetBalance degrades further to
// the zero-balance placeholder.
func (s *ResilientWalletService) GetHistoricalBalance(ctx context.Context, userID string, asOf time.Time) (*domain.BalanceResponse, error) {
	var balance *domain.BalanceResponse
	err := s.execute(ctx, "get_historical_balance", func() error {
		var opErr error
		balance, opErr = s.inner.GetHistoricalBalance(ctx, userID, asOf)
		return opErr
	})
	if s.shouldFallback(err) {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("historical balance unavailable, serving current balance")
		return s.GetBalance(ctx, userID)
	}
	return balance, err
}

// ListTransactions passes through.
func (s *ResilientWalletService) ListTransactions(ctx context.Context, userID string, limit int) ([]domain.Transaction, error) {
	return s.inner.ListTransactions(ctx, userID, limit)
}

// execute runs op through the breaker and retry policy. Each Allow is paired
// with exactly one Record covering the whole retried call.
func (s *ResilientWalletService) execute(ctx context.Context, name string, op func() error) error {
	if err := s.breaker.Allow(); err != nil {
		s.log.Warn().Str("operation", name).Msg("circuit open, short-circuiting to fallback")
		return err
	}
	err := s.retry.Do(ctx, op, apperror.IsTransient)
	s.breaker.Record(err == nil || !apperror.IsTransient(err))
	return err
}

// shouldFallback reports whether err should route to the operation's fallback
// rather than propagate. Business errors propagate; open-circuit and transient
// infrastructure failures fall back.
func (s *ResilientWalletService) shouldFallback(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, resilience.ErrOpen) || apperror.IsTransient(err)
}
