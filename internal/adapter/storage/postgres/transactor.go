package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
)

type txBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// Transactor implements ports.DBTransactor using pgxpool.Pool.
// Settlement steps rely on row-level conditional updates, so READ COMMITTED is enough.
type Transactor struct {
	pool Pool
	opts pgx.TxOptions
}

// NewTransactor creates a new Transactor wrapping the connection pool.
func NewTransactor(pool Pool) *Transactor {
	return &Transactor{
		pool: pool,
		opts: pgx.TxOptions{IsoLevel: pgx.ReadCommitted},
	}
}

// Begin starts a new database transaction.
func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	if b, ok := t.pool.(txBeginner); ok {
		return b.BeginTx(ctx, t.opts)
	}
	return t.pool.Begin(ctx)
}
