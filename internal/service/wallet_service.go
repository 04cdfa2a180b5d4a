package service

import (
	"context"
	"fmt"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const defaultTransactionLimit = 20

// WalletServiceImpl implements ports.WalletService. Every mutation locks the
// affected wallet rows, updates the balance and appends the ledger entry in one
// database transaction, then evicts the cache entries after commit.
type WalletServiceImpl struct {
	walletRepo ports.WalletRepository
	txRepo     ports.TransactionRepository
	cache      ports.WalletCache
	transactor ports.DBTransactor
	log        zerolog.Logger
}

// NewWalletService creates a new WalletServiceImpl.
func NewWalletService(
	walletRepo ports.WalletRepository,
	txRepo ports.TransactionRepository,
	cache ports.WalletCache,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *WalletServiceImpl {
	return &WalletServiceImpl{
		walletRepo: walletRepo,
		txRepo:     txRepo,
		cache:      cache,
		transactor: transactor,
		log:        log,
	}
}

// CreateWallet provisions a zero-balance wallet and writes it through to the
// cache so the first balance read after creation is already a hit.
func (s *WalletServiceImpl) CreateWallet(ctx context.Context, userID string) (*domain.Wallet, error) {
	if userID == "" {
		return nil, apperror.Validation("user_id must not be empty")
	}

	wallet := domain.NewWallet(userID)
	if err := s.walletRepo.Create(ctx, wallet); err != nil {
		return nil, err
	}

	// Write-through (best-effort)
	if err := s.cache.SetWallet(ctx, wallet); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("failed to cache new wallet")
	}
	if err := s.cache.SetBalance(ctx, domain.NewBalanceResponse(wallet)); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("failed to cache new balance")
	}

	s.log.Info().
		Str("wallet_id", wallet.ID.String()).
		Str("user_id", userID).
		Msg("wallet created")

	return wallet, nil
}

// Deposit credits a wallet and appends a DEPOSIT ledger entry.
func (s *WalletServiceImpl) Deposit(ctx context.Context, userID string, amount decimal.Decimal) (*domain.Wallet, error) {
	if amount.Cmp(decimal.Zero) <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	// Begin database transaction
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// Lock & get wallet
	wallet, err := s.walletRepo.GetByUserIDForUpdate(ctx, dbTx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrWalletNotFound(userID)
	}

	wallet.Balance = wallet.Balance.Add(amount)
	if err := s.walletRepo.UpdateBalance(ctx, dbTx, wallet.ID, wallet.Balance); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update balance: %w", err))
	}

	entry := domain.NewTransaction(domain.TransactionTypeDeposit, amount, userID, nil, domain.DescriptionDeposit)
	if err := s.txRepo.Create(ctx, dbTx, entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create ledger entry: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.evict(ctx, userID)

	s.log.Info().
		Str("tx_id", entry.ID.String()).
		Str("user_id", userID).
		Str("amount", amount.String()).
		Msg("deposit completed")

	return wallet, nil
}

// Withdraw debits a wallet and appends a WITHDRAW ledger entry. The debit is
// rejected before any write when the locked balance cannot cover the amount.
func (s *WalletServiceImpl) Withdraw(ctx context.Context, userID string, amount decimal.Decimal) (*domain.Wallet, error) {
	if amount.Cmp(decimal.Zero) <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.walletRepo.GetByUserIDForUpdate(ctx, dbTx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrWalletNotFound(userID)
	}

	// Business rule: sufficient funds
	if !wallet.CanDebit(amount) {
		return nil, apperror.ErrInsufficientFunds()
	}

	wallet.Balance = wallet.Balance.Sub(amount)
	if err := s.walletRepo.UpdateBalance(ctx, dbTx, wallet.ID, wallet.Balance); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update balance: %w", err))
	}

	entry := domain.NewTransaction(domain.TransactionTypeWithdraw, amount, userID, nil, domain.DescriptionWithdraw)
	if err := s.txRepo.Create(ctx, dbTx, entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create ledger entry: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.evict(ctx, userID)

	s.log.Info().
		Str("tx_id", entry.ID.String()).
		Str("user_id", userID).
		Str("amount", amount.String()).
		Msg("withdrawal completed")

	return wallet, nil
}

// Transfer atomically moves funds between two wallets. Both rows are locked in
// lexicographic userID order so two opposing transfers cannot deadlock. One
// TRANSFER entry records both parties; money is conserved because the debit,
// the credit and the entry commit together.
func (s *WalletServiceImpl) Transfer(ctx context.Context, sourceUserID, destinationUserID string, amount decimal.Decimal) error {
	if amount.Cmp(decimal.Zero) <= 0 {
		return apperror.ErrInvalidAmount()
	}
	if sourceUserID == destinationUserID {
		return apperror.ErrSelfTransfer()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// Lock order: lexicographically smaller userID first
	first, second := sourceUserID, destinationUserID
	if second < first {
		first, second = second, first
	}

	locked := make(map[string]*domain.Wallet, 2)
	for _, userID := range []string{first, second} {
		w, err := s.walletRepo.GetByUserIDForUpdate(ctx, dbTx, userID)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
		}
		if w == nil {
			return apperror.ErrWalletNotFound(userID)
		}
		locked[userID] = w
	}
	source, destination := locked[sourceUserID], locked[destinationUserID]

	if !source.CanDebit(amount) {
		return apperror.ErrInsufficientFunds()
	}

	source.Balance = source.Balance.Sub(amount)
	destination.Balance = destination.Balance.Add(amount)

	if err := s.walletRepo.UpdateBalance(ctx, dbTx, source.ID, source.Balance); err != nil {
		return apperror.InternalError(fmt.Errorf("update source balance: %w", err))
	}
	if err := s.walletRepo.UpdateBalance(ctx, dbTx, destination.ID, destination.Balance); err != nil {
		return apperror.InternalError(fmt.Errorf("update destination balance: %w", err))
	}

	entry := domain.NewTransaction(domain.TransactionTypeTransfer, amount, sourceUserID, &destinationUserID, domain.DescriptionTransfer)
	if err := s.txRepo.Create(ctx, dbTx, entry); err != nil {
		return apperror.InternalError(fmt.Errorf("create ledger entry: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.evict(ctx, sourceUserID, destinationUserID)

	s.log.Info().
		Str("tx_id", entry.ID.String()).
		Str("source_user_id", sourceUserID).
		Str("destination_user_id", destinationUserID).
		Str("amount", amount.String()).
		Msg("transfer completed")

	return nil
}

// GetBalance serves the current balance read-through: balance cache first, then
// the wallet projection, then the store. Absence is never cached, so a wallet
// created right after a miss is visible immediately.
func (s *WalletServiceImpl) GetBalance(ctx context.Context, userID string) (*domain.BalanceResponse, error) {
	cached, err := s.cache.GetBalance(ctx, userID)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("balance cache read failed, falling through to store")
	}
	if cached != nil {
		return cached, nil
	}

	wallet, err := s.getWallet(ctx, userID)
	if err != nil {
		return nil, err
	}

	balance := domain.NewBalanceResponse(wallet)
	if err := s.cache.SetBalance(ctx, balance); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("failed to cache balance")
	}
	return balance, nil
}

// GetHistoricalBalance folds the ledger up to asOf. Entries are immutable, so
// replaying them at any point in time is exact, not an approximation.
func (s *WalletServiceImpl) GetHistoricalBalance(ctx context.Context, userID string, asOf time.Time) (*domain.BalanceResponse, error) {
	wallet, err := s.getWallet(ctx, userID)
	if err != nil {
		return nil, err
	}

	entries, err := s.txRepo.ListForUserUpTo(ctx, userID, asOf)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list ledger entries: %w", err))
	}

	balance := decimal.Zero
	for i := range entries {
		balance = balance.Add(entries[i].SignedAmountFor(userID))
	}

	return &domain.BalanceResponse{
		UserID:   userID,
		Balance:  balance,
		Currency: wallet.Currency,
	}, nil
}

// ListTransactions returns the user's most recent ledger entries, newest first.
func (s *WalletServiceImpl) ListTransactions(ctx context.Context, userID string, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = defaultTransactionLimit
	}

	if _, err := s.getWallet(ctx, userID); err != nil {
		return nil, err
	}

	entries, err := s.txRepo.ListRecent(ctx, userID, limit)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list recent entries: %w", err))
	}
	return entries, nil
}

// getWallet is the wallet-projection read-through shared by the read paths.
func (s *WalletServiceImpl) getWallet(ctx context.Context, userID string) (*domain.Wallet, error) {
	cached, err := s.cache.GetWallet(ctx, userID)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("wallet cache read failed, falling through to store")
	}
	if cached != nil {
		return cached, nil
	}

	wallet, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrWalletNotFound(userID)
	}

	if err := s.cache.SetWallet(ctx, wallet); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("failed to cache wallet")
	}
	return wallet, nil
}

// evict drops both cache projections for the given users after a commit so the
// next read rebuilds them from the store. Eviction failure is logged, not
// returned: the short balance TTL bounds how long a stale entry can live.
func (s *WalletServiceImpl) evict(ctx context.Context, userIDs ...string) {
	if err := s.cache.Invalidate(ctx, userIDs...); err != nil {
		s.log.Warn().Err(err).Strs("user_ids", userIDs).Msg("cache eviction failed")
	}
}
