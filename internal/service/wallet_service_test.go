package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports/mocks"
	"wallet-ledger/pkg/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type walletTestDeps struct {
	svc        *WalletServiceImpl
	walletRepo *mocks.MockWalletRepository
	txRepo     *mocks.MockTransactionRepository
	cache      *mocks.MockWalletCache
	transactor *mocks.MockDBTransactor
	ctrl       *gomock.Controller
}

func setupWalletService(t *testing.T) *walletTestDeps {
	ctrl := gomock.NewController(t)
	d := &walletTestDeps{
		walletRepo: mocks.NewMockWalletRepository(ctrl),
		txRepo:     mocks.NewMockTransactionRepository(ctrl),
		cache:      mocks.NewMockWalletCache(ctrl),
		transactor: mocks.NewMockDBTransactor(ctrl),
		ctrl:       ctrl,
	}
	d.svc = NewWalletService(d.walletRepo, d.txRepo, d.cache, d.transactor, zerolog.Nop())
	return d
}

// mockTx implements pgx.Tx for testing
type mockTx struct{ pgx.Tx }

func (m *mockTx) Rollback(_ context.Context) error { return nil }
func (m *mockTx) Commit(_ context.Context) error   { return nil }

func walletWithBalance(userID string, balance int64) *domain.Wallet {
	w := domain.NewWallet(userID)
	w.Balance = decimal.NewFromInt(balance)
	return w
}

// decimalEq matches decimal arguments by numeric value. Arithmetic results
// carry a different internal big.Int shape than literals, so the default
// DeepEqual matcher cannot be trusted for decimals.
func decimalEq(want int64) gomock.Matcher {
	return gomock.Cond(func(d decimal.Decimal) bool {
		return d.Equal(decimal.NewFromInt(want))
	})
}

// ==================== CreateWallet Tests ====================

func TestWalletService_CreateWallet_Success(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()

	d.walletRepo.EXPECT().Create(ctx, gomock.Any()).Return(nil)
	// Write-through on create
	d.cache.EXPECT().SetWallet(ctx, gomock.Any()).Return(nil)
	d.cache.EXPECT().SetBalance(ctx, gomock.Any()).Return(nil)

	wallet, err := d.svc.CreateWallet(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, wallet)
	assert.Equal(t, "alice", wallet.UserID)
	assert.True(t, wallet.Balance.IsZero())
	assert.Equal(t, domain.DefaultCurrency, wallet.Currency)
}

func TestWalletService_CreateWallet_Duplicate(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.walletRepo.EXPECT().Create(ctx, gomock.Any()).Return(apperror.ErrWalletAlreadyExists("alice"))

	wallet, err := d.svc.CreateWallet(ctx, "alice")
	assert.Nil(t, wallet)
	assertAppError(t, err, "WAL_002")
}

func TestWalletService_CreateWallet_EmptyUserID(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	wallet, err := d.svc.CreateWallet(context.Background(), "")
	assert.Nil(t, wallet)
	assertAppError(t, err, "WAL_006")
}

func TestWalletService_CreateWallet_CacheFailureIsNotFatal(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.walletRepo.EXPECT().Create(ctx, gomock.Any()).Return(nil)
	d.cache.EXPECT().SetWallet(ctx, gomock.Any()).Return(errors.New("redis down"))
	d.cache.EXPECT().SetBalance(ctx, gomock.Any()).Return(errors.New("redis down"))

	wallet, err := d.svc.CreateWallet(ctx, "alice")
	require.NoError(t, err)
	assert.NotNil(t, wallet)
}

// ==================== Deposit Tests ====================

func TestWalletService_Deposit_Success(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	wallet := walletWithBalance("alice", 100)

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetByUserIDForUpdate(ctx, tx, "alice").Return(wallet, nil)
	d.walletRepo.EXPECT().UpdateBalance(ctx, tx, wallet.ID, decimalEq(150)).Return(nil)
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, entry *domain.Transaction) error {
			assert.Equal(t, domain.TransactionTypeDeposit, entry.Type)
			assert.True(t, entry.Amount.Equal(decimal.NewFromInt(50)))
			assert.Equal(t, "alice", entry.SourceUserID)
			assert.Nil(t, entry.DestinationUserID)
			assert.Equal(t, domain.TransactionStatusCompleted, entry.Status)
			return nil
		})
	d.cache.EXPECT().Invalidate(ctx, "alice").Return(nil)

	result, err := d.svc.Deposit(ctx, "alice", decimal.NewFromInt(50))
	require.NoError(t, err)
	assert.True(t, result.Balance.Equal(decimal.NewFromInt(150)))
}

func TestWalletService_Deposit_InvalidAmount(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	for _, amount := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-10)} {
		result, err := d.svc.Deposit(context.Background(), "alice", amount)
		assert.Nil(t, result)
		assertAppError(t, err, "WAL_003")
	}
}

func TestWalletService_Deposit_WalletNotFound(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetByUserIDForUpdate(ctx, tx, "ghost").Return(nil, nil)

	result, err := d.svc.Deposit(ctx, "ghost", decimal.NewFromInt(50))
	assert.Nil(t, result)
	assertAppError(t, err, "WAL_001")
}

// ==================== Withdraw Tests ====================

func TestWalletService_Withdraw_Success(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	wallet := walletWithBalance("alice", 100)

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetByUserIDForUpdate(ctx, tx, "alice").Return(wallet, nil)
	d.walletRepo.EXPECT().UpdateBalance(ctx, tx, wallet.ID, decimalEq(70)).Return(nil)
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	d.cache.EXPECT().Invalidate(ctx, "alice").Return(nil)

	result, err := d.svc.Withdraw(ctx, "alice", decimal.NewFromInt(30))
	require.NoError(t, err)
	assert.True(t, result.Balance.Equal(decimal.NewFromInt(70)))
}

func TestWalletService_Withdraw_InsufficientFunds(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	wallet := walletWithBalance("alice", 20)

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetByUserIDForUpdate(ctx, tx, "alice").Return(wallet, nil)
	// No UpdateBalance, no ledger entry: the transaction rolls back untouched

	result, err := d.svc.Withdraw(ctx, "alice", decimal.NewFromInt(50))
	assert.Nil(t, result)
	assertAppError(t, err, "WAL_004")
}

func TestWalletService_Withdraw_ExactBalance(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	wallet := walletWithBalance("alice", 50)

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetByUserIDForUpdate(ctx, tx, "alice").Return(wallet, nil)
	d.walletRepo.EXPECT().UpdateBalance(ctx, tx, wallet.ID, decimalEq(0)).Return(nil)
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	d.cache.EXPECT().Invalidate(ctx, "alice").Return(nil)

	result, err := d.svc.Withdraw(ctx, "alice", decimal.NewFromInt(50))
	require.NoError(t, err)
	assert.True(t, result.Balance.IsZero())
}

func TestWalletService_Withdraw_InvalidAmount(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	result, err := d.svc.Withdraw(context.Background(), "alice", decimal.Zero)
	assert.Nil(t, result)
	assertAppError(t, err, "WAL_003")
}

// ==================== Transfer Tests ====================

func TestWalletService_Transfer_Success(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	alice := walletWithBalance("alice", 100)
	bob := walletWithBalance("bob", 10)

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	// Lexicographic lock order: alice before bob
	gomock.InOrder(
		d.walletRepo.EXPECT().GetByUserIDForUpdate(ctx, tx, "alice").Return(alice, nil),
		d.walletRepo.EXPECT().GetByUserIDForUpdate(ctx, tx, "bob").Return(bob, nil),
	)
	d.walletRepo.EXPECT().UpdateBalance(ctx, tx, alice.ID, decimalEq(30)).Return(nil)
	d.walletRepo.EXPECT().UpdateBalance(ctx, tx, bob.ID, decimalEq(80)).Return(nil)
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, entry *domain.Transaction) error {
			assert.Equal(t, domain.TransactionTypeTransfer, entry.Type)
			assert.Equal(t, "alice", entry.SourceUserID)
			require.NotNil(t, entry.DestinationUserID)
			assert.Equal(t, "bob", *entry.DestinationUserID)
			return nil
		})
	d.cache.EXPECT().Invalidate(ctx, "alice", "bob").Return(nil)

	err := d.svc.Transfer(ctx, "alice", "bob", decimal.NewFromInt(70))
	require.NoError(t, err)
}

func TestWalletService_Transfer_LockOrderIsLexicographic(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	alice := walletWithBalance("alice", 5)
	zoe := walletWithBalance("zoe", 100)

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	// Source is zoe, but alice sorts first and must be locked first
	gomock.InOrder(
		d.walletRepo.EXPECT().GetByUserIDForUpdate(ctx, tx, "alice").Return(alice, nil),
		d.walletRepo.EXPECT().GetByUserIDForUpdate(ctx, tx, "zoe").Return(zoe, nil),
	)
	d.walletRepo.EXPECT().UpdateBalance(ctx, tx, zoe.ID, decimalEq(60)).Return(nil)
	d.walletRepo.EXPECT().UpdateBalance(ctx, tx, alice.ID, decimalEq(45)).Return(nil)
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	d.cache.EXPECT().Invalidate(ctx, "zoe", "alice").Return(nil)

	err := d.svc.Transfer(ctx, "zoe", "alice", decimal.NewFromInt(40))
	require.NoError(t, err)
}

func TestWalletService_Transfer_SelfTransfer(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	err := d.svc.Transfer(context.Background(), "alice", "alice", decimal.NewFromInt(10))
	assertAppError(t, err, "WAL_005")
}

func TestWalletService_Transfer_InvalidAmount(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	err := d.svc.Transfer(context.Background(), "alice", "bob", decimal.NewFromInt(-1))
	assertAppError(t, err, "WAL_003")
}

func TestWalletService_Transfer_InsufficientFunds(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	alice := walletWithBalance("alice", 10)
	bob := walletWithBalance("bob", 0)

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetByUserIDForUpdate(ctx, tx, "alice").Return(alice, nil)
	d.walletRepo.EXPECT().GetByUserIDForUpdate(ctx, tx, "bob").Return(bob, nil)

	err := d.svc.Transfer(ctx, "alice", "bob", decimal.NewFromInt(50))
	assertAppError(t, err, "WAL_004")
}

func TestWalletService_Transfer_DestinationNotFound(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	alice := walletWithBalance("alice", 100)

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetByUserIDForUpdate(ctx, tx, "alice").Return(alice, nil)
	d.walletRepo.EXPECT().GetByUserIDForUpdate(ctx, tx, "ghost").Return(nil, nil)

	err := d.svc.Transfer(ctx, "alice", "ghost", decimal.NewFromInt(50))
	assertAppError(t, err, "WAL_001")
}

// ==================== GetBalance Tests ====================

func TestWalletService_GetBalance_CacheHit(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	cached := &domain.BalanceResponse{UserID: "alice", Balance: decimal.NewFromInt(150), Currency: domain.DefaultCurrency}

	d.cache.EXPECT().GetBalance(ctx, "alice").Return(cached, nil)

	result, err := d.svc.GetBalance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, cached, result)
}

func TestWalletService_GetBalance_MissFallsThroughToStore(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	wallet := walletWithBalance("alice", 150)

	d.cache.EXPECT().GetBalance(ctx, "alice").Return(nil, nil)
	d.cache.EXPECT().GetWallet(ctx, "alice").Return(nil, nil)
	d.walletRepo.EXPECT().GetByUserID(ctx, "alice").Return(wallet, nil)
	d.cache.EXPECT().SetWallet(ctx, wallet).Return(nil)
	d.cache.EXPECT().SetBalance(ctx, gomock.Any()).Return(nil)

	result, err := d.svc.GetBalance(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, result.Balance.Equal(decimal.NewFromInt(150)))
	assert.False(t, result.Degraded)
}

func TestWalletService_GetBalance_WalletProjectionHit(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	wallet := walletWithBalance("alice", 99)

	d.cache.EXPECT().GetBalance(ctx, "alice").Return(nil, nil)
	d.cache.EXPECT().GetWallet(ctx, "alice").Return(wallet, nil)
	d.cache.EXPECT().SetBalance(ctx, gomock.Any()).Return(nil)

	result, err := d.svc.GetBalance(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, result.Balance.Equal(decimal.NewFromInt(99)))
}

func TestWalletService_GetBalance_NotFoundIsNotCached(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()

	d.cache.EXPECT().GetBalance(ctx, "ghost").Return(nil, nil)
	d.cache.EXPECT().GetWallet(ctx, "ghost").Return(nil, nil)
	d.walletRepo.EXPECT().GetByUserID(ctx, "ghost").Return(nil, nil)
	// No SetWallet / SetBalance expectations: absence is never cached

	result, err := d.svc.GetBalance(ctx, "ghost")
	assert.Nil(t, result)
	assertAppError(t, err, "WAL_001")
}

func TestWalletService_GetBalance_CacheErrorFallsThrough(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	wallet := walletWithBalance("alice", 10)

	d.cache.EXPECT().GetBalance(ctx, "alice").Return(nil, errors.New("redis down"))
	d.cache.EXPECT().GetWallet(ctx, "alice").Return(nil, errors.New("redis down"))
	d.walletRepo.EXPECT().GetByUserID(ctx, "alice").Return(wallet, nil)
	d.cache.EXPECT().SetWallet(ctx, wallet).Return(errors.New("redis down"))
	d.cache.EXPECT().SetBalance(ctx, gomock.Any()).Return(errors.New("redis down"))

	result, err := d.svc.GetBalance(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, result.Balance.Equal(decimal.NewFromInt(10)))
}

// ==================== GetHistoricalBalance Tests ====================

func TestWalletService_GetHistoricalBalance_FoldsLedger(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	asOf := time.Now().UTC()
	wallet := walletWithBalance("alice", 70)
	bob := "bob"

	entries := []domain.Transaction{
		*domain.NewTransaction(domain.TransactionTypeDeposit, decimal.NewFromInt(100), "alice", nil, domain.DescriptionDeposit),
		*domain.NewTransaction(domain.TransactionTypeWithdraw, decimal.NewFromInt(30), "alice", nil, domain.DescriptionWithdraw),
		*domain.NewTransaction(domain.TransactionTypeTransfer, decimal.NewFromInt(40), "alice", &bob, domain.DescriptionTransfer),
		*domain.NewTransaction(domain.TransactionTypeTransfer, decimal.NewFromInt(15), "bob", strPtr("alice"), domain.DescriptionTransfer),
	}

	d.cache.EXPECT().GetWallet(ctx, "alice").Return(wallet, nil)
	d.txRepo.EXPECT().ListForUserUpTo(ctx, "alice", asOf).Return(entries, nil)

	result, err := d.svc.GetHistoricalBalance(ctx, "alice", asOf)
	require.NoError(t, err)
	// 100 - 30 - 40 + 15 = 45
	assert.True(t, result.Balance.Equal(decimal.NewFromInt(45)))
	assert.Equal(t, "alice", result.UserID)
	assert.False(t, result.Degraded)
}

func TestWalletService_GetHistoricalBalance_EmptyLedger(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	asOf := time.Now().UTC()
	wallet := walletWithBalance("alice", 0)

	d.cache.EXPECT().GetWallet(ctx, "alice").Return(wallet, nil)
	d.txRepo.EXPECT().ListForUserUpTo(ctx, "alice", asOf).Return(nil, nil)

	result, err := d.svc.GetHistoricalBalance(ctx, "alice", asOf)
	require.NoError(t, err)
	assert.True(t, result.Balance.IsZero())
}

func TestWalletService_GetHistoricalBalance_WalletNotFound(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()

	d.cache.EXPECT().GetWallet(ctx, "ghost").Return(nil, nil)
	d.walletRepo.EXPECT().GetByUserID(ctx, "ghost").Return(nil, nil)

	result, err := d.svc.GetHistoricalBalance(ctx, "ghost", time.Now())
	assert.Nil(t, result)
	assertAppError(t, err, "WAL_001")
}

// ==================== ListTransactions Tests ====================

func TestWalletService_ListTransactions(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	wallet := walletWithBalance("alice", 100)
	entries := []domain.Transaction{
		*domain.NewTransaction(domain.TransactionTypeDeposit, decimal.NewFromInt(100), "alice", nil, domain.DescriptionDeposit),
	}

	d.cache.EXPECT().GetWallet(ctx, "alice").Return(wallet, nil)
	d.txRepo.EXPECT().ListRecent(ctx, "alice", 5).Return(entries, nil)

	result, err := d.svc.ListTransactions(ctx, "alice", 5)
	require.NoError(t, err)
	assert.Len(t, result, 1)
}

func TestWalletService_ListTransactions_DefaultLimit(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	wallet := walletWithBalance("alice", 100)

	d.cache.EXPECT().GetWallet(ctx, "alice").Return(wallet, nil)
	d.txRepo.EXPECT().ListRecent(ctx, "alice", defaultTransactionLimit).Return(nil, nil)

	_, err := d.svc.ListTransactions(ctx, "alice", 0)
	require.NoError(t, err)
}

// ==================== Helpers ====================

func strPtr(s string) *string { return &s }

func assertAppError(t *testing.T, err error, expectedCode string) {
	t.Helper()
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, expectedCode, appErr.Code)
}
