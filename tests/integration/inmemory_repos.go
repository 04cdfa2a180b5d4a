package integration

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// errStoreDown simulates an unreachable database for resilience tests.
var errStoreDown = errors.New("store unavailable")

// --- In-Memory Transactor ---

// memTx is a pgx.Tx stand-in that tracks completion callbacks so row locks
// taken inside the transaction are released exactly once, on commit or
// rollback, mirroring the lifetime of a real FOR UPDATE lock.
type memTx struct {
	mu     sync.Mutex
	done   bool
	onDone []func()
}

func (t *memTx) addOnDone(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onDone = append(t.onDone, fn)
}

func (t *memTx) finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return
	}
	t.done = true
	for i := len(t.onDone) - 1; i >= 0; i-- {
		t.onDone[i]()
	}
}

func (t *memTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *memTx) Commit(ctx context.Context) error          { t.finish(); return nil }
func (t *memTx) Rollback(ctx context.Context) error        { t.finish(); return nil }
func (t *memTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *memTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *memTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *memTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *memTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *memTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *memTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (t *memTx) Conn() *pgx.Conn                                               { return nil }

type inMemoryTransactor struct{}

func newInMemoryTransactor() *inMemoryTransactor {
	return &inMemoryTransactor{}
}

func (t *inMemoryTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	return &memTx{}, nil
}

// --- In-Memory Wallet Repo ---

// inMemoryWalletRepo keeps one wallet per user and emulates row-level locking
// with a per-user mutex held until the enclosing memTx completes. The failing
// flag makes every call return an infrastructure error, which lets tests drive
// the retry and fallback paths end-to-end.
type inMemoryWalletRepo struct {
	mu       sync.RWMutex
	wallets  map[string]*domain.Wallet // keyed by user ID
	users    map[uuid.UUID]string      // wallet ID -> user ID
	rowLocks sync.Map                  // user ID -> *sync.Mutex
	failing  atomic.Bool
}

func newInMemoryWalletRepo() *inMemoryWalletRepo {
	return &inMemoryWalletRepo{
		wallets: make(map[string]*domain.Wallet),
		users:   make(map[uuid.UUID]string),
	}
}

func (r *inMemoryWalletRepo) setFailing(failing bool) {
	r.failing.Store(failing)
}

func (r *inMemoryWalletRepo) Create(ctx context.Context, w *domain.Wallet) error {
	if r.failing.Load() {
		return apperror.InternalError(errStoreDown)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.wallets[w.UserID]; exists {
		return apperror.ErrWalletAlreadyExists(w.UserID)
	}
	cp := *w
	r.wallets[w.UserID] = &cp
	r.users[w.ID] = w.UserID
	return nil
}

func (r *inMemoryWalletRepo) GetByUserID(ctx context.Context, userID string) (*domain.Wallet, error) {
	if r.failing.Load() {
		return nil, apperror.InternalError(errStoreDown)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.wallets[userID]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (r *inMemoryWalletRepo) GetByUserIDForUpdate(ctx context.Context, tx pgx.Tx, userID string) (*domain.Wallet, error) {
	if r.failing.Load() {
		return nil, apperror.InternalError(errStoreDown)
	}

	lockAny, _ := r.rowLocks.LoadOrStore(userID, &sync.Mutex{})
	lock := lockAny.(*sync.Mutex)
	lock.Lock()
	if m, ok := tx.(*memTx); ok {
		m.addOnDone(lock.Unlock)
	} else {
		defer lock.Unlock()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.wallets[userID]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (r *inMemoryWalletRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, balance decimal.Decimal) error {
	if r.failing.Load() {
		return apperror.InternalError(errStoreDown)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	userID, ok := r.users[walletID]
	if !ok {
		return apperror.ErrWalletNotFound(walletID.String())
	}
	w := r.wallets[userID]
	w.Balance = balance
	w.UpdatedAt = time.Now().UTC()
	return nil
}

// --- In-Memory Transaction Repo ---

type inMemoryTransactionRepo struct {
	mu      sync.RWMutex
	entries []domain.Transaction
}

func newInMemoryTransactionRepo() *inMemoryTransactionRepo {
	return &inMemoryTransactionRepo{}
}

func (r *inMemoryTransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *t)
	return nil
}

func (r *inMemoryTransactionRepo) ListForUserUpTo(ctx context.Context, userID string, asOf time.Time) ([]domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Transaction
	for _, e := range r.entries {
		if e.CreatedAt.After(asOf) {
			continue
		}
		if e.SourceUserID == userID || (e.DestinationUserID != nil && *e.DestinationUserID == userID) {
			result = append(result, e)
		}
	}
	return result, nil
}

func (r *inMemoryTransactionRepo) ListRecent(ctx context.Context, userID string, limit int) ([]domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Transaction
	for i := len(r.entries) - 1; i >= 0 && len(result) < limit; i-- {
		e := r.entries[i]
		if e.SourceUserID == userID || (e.DestinationUserID != nil && *e.DestinationUserID == userID) {
			result = append(result, e)
		}
	}
	return result, nil
}

// --- In-Memory User Repo ---

type inMemoryUserRepo struct {
	mu    sync.RWMutex
	users map[string]*domain.User // keyed by username
}

func newInMemoryUserRepo() *inMemoryUserRepo {
	return &inMemoryUserRepo{users: make(map[string]*domain.User)}
}

func (r *inMemoryUserRepo) Create(ctx context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.users[u.Username]; exists {
		return apperror.ErrUsernameExists()
	}
	cp := *u
	r.users[u.Username] = &cp
	return nil
}

func (r *inMemoryUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[username]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}
