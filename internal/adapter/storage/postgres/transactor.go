package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Transactor implements ports.DBTransactor on top of a pgx pool. Every
// ledger mutation runs inside a transaction it opens, so the balance update
// and the transaction-log insert commit or roll back together.
type Transactor struct {
	pool Pool
}

// NewTransactor wraps the connection pool.
func NewTransactor(pool Pool) *Transactor {
	return &Transactor{pool: pool}
}

// Begin opens the transaction a ledger mutation runs in. Row locks taken
// with GetByUserIDForUpdate are held until this transaction finishes.
func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	return t.pool.Begin(ctx)
}
