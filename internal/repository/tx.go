package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Transactor runs fn inside one database transaction. Repository calls made with the
// context handed to fn join that transaction; fn returning an error rolls it back.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// TxFunc adapts a function to Transactor.
type TxFunc func(ctx context.Context, fn func(ctx context.Context) error) error

// WithinTx implements Transactor.
func (f TxFunc) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return f(ctx, fn)
}

// NoTx runs fn directly. Used when a backend has no transactions to offer.
var NoTx Transactor = TxFunc(func(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
})

type pgxTxKey struct{}

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// conn returns the transaction carried by ctx, or pool.
func conn(ctx context.Context, pool *pgxpool.Pool) querier {
	if tx, ok := ctx.Value(pgxTxKey{}).(pgx.Tx); ok {
		return tx
	}
	return pool
}

func pgxTransactor(pool *pgxpool.Pool) TxFunc {
	return func(ctx context.Context, fn func(ctx context.Context) error) error {
		if _, ok := ctx.Value(pgxTxKey{}).(pgx.Tx); ok {
			return fn(ctx)
		}
		return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			return fn(context.WithValue(ctx, pgxTxKey{}, tx))
		})
	}
}
