// Package sqlite implements the repository interfaces on an embedded SQLite database
// (modernc.org/sqlite, no cgo). It backs development setups and integration tests.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlitedrv "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/issuedesk/issue-service/internal/repository"
)

// NewStore wires every repository onto db. The schema must already be migrated.
func NewStore(db *sql.DB) *repository.Store {
	return repository.NewStore(
		&userRepository{db: db},
		&profileRepository{db: db},
		&issueRepository{db: db},
		&commentRepository{db: db},
		&historyRepository{db: db},
		transactor(db),
		db.PingContext,
		db.Close,
	)
}

type txKey struct{}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn returns the transaction carried by ctx, or db. Code running inside a transaction
// must go through it: the store has a single connection.
func conn(ctx context.Context, db *sql.DB) queryer {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return db
}

func transactor(db *sql.DB) repository.TxFunc {
	return func(ctx context.Context, fn func(ctx context.Context) error) error {
		if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
			return fn(ctx)
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("sqlite: begin: %w", err)
		}
		if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
			_ = tx.Rollback()
			return err
		}
		return tx.Commit()
	}
}

func now() time.Time {
	return time.Now().UTC()
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	var sqliteErr *sqlitedrv.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return repository.ErrDuplicate
	}
	return err
}

func inClause(ids []int64) (string, []any) {
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	return "(" + strings.Join(placeholders, ",") + ")", args
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}
