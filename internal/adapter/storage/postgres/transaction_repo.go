package postgres

import (
	"context"
	"fmt"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// TransactionRepo implements ports.TransactionRepository over the append-only
// transactions table. There is no update or delete path on purpose.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

const transactionColumns = `id, tx_type, amount::text, currency, created_at, source_user_id, destination_user_id, status, description`

// Create appends a ledger entry within the caller's transaction, so the entry
// commits atomically with the balance update it records.
func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	query := `INSERT INTO transactions (id, tx_type, amount, currency, created_at, source_user_id, destination_user_id, status, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := tx.Exec(ctx, query,
		t.ID, t.Type, t.Amount.String(), t.Currency, t.CreatedAt,
		t.SourceUserID, t.DestinationUserID, t.Status, t.Description,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// ListForUserUpTo returns every transaction where the user is a party with
// CreatedAt <= asOf, in insertion order. Order does not affect the balance
// fold; it makes the result stable for statements.
func (r *TransactionRepo) ListForUserUpTo(ctx context.Context, userID string, asOf time.Time) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE (source_user_id = $1 OR destination_user_id = $1) AND created_at <= $2
		ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, userID, asOf)
	if err != nil {
		return nil, fmt.Errorf("list transactions up to: %w", err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

// ListRecent returns the user's most recent transactions, newest first.
func (r *TransactionRepo) ListRecent(ctx context.Context, userID string, limit int) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE source_user_id = $1 OR destination_user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent transactions: %w", err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

func collectTransactions(rows pgx.Rows) ([]domain.Transaction, error) {
	var result []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		var amount string
		if err := rows.Scan(
			&t.ID, &t.Type, &amount, &t.Currency, &t.CreatedAt,
			&t.SourceUserID, &t.DestinationUserID, &t.Status, &t.Description,
		); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		var err error
		t.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parse amount %q: %w", amount, err)
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return result, nil
}
