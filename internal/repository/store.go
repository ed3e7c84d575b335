package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store bundles the repositories of one backend.
type Store struct {
	Users    UserRepository
	Profiles ProfileRepository
	Issues   IssueRepository
	Comments CommentRepository
	History  HistoryRepository

	tx    Transactor
	ping  func(ctx context.Context) error
	close func() error
}

// NewStore assembles a Store from repositories and backend hooks. Any hook may be nil.
func NewStore(users UserRepository, profiles ProfileRepository, issues IssueRepository, comments CommentRepository, history HistoryRepository, tx Transactor, ping func(context.Context) error, closeFn func() error) *Store {
	if tx == nil {
		tx = NoTx
	}
	return &Store{
		Users:    users,
		Profiles: profiles,
		Issues:   issues,
		Comments: comments,
		History:  history,
		tx:       tx,
		ping:     ping,
		close:    closeFn,
	}
}

// NewPostgresStore wires the pgx repositories onto pool. Closing the store closes pool.
func NewPostgresStore(pool *pgxpool.Pool) *Store {
	return NewStore(
		NewUserRepository(pool),
		NewProfileRepository(pool),
		NewIssueRepository(pool),
		NewCommentRepository(pool),
		NewHistoryRepository(pool),
		pgxTransactor(pool),
		pool.Ping,
		func() error {
			pool.Close()
			return nil
		},
	)
}

// WithinTx runs fn in one backend transaction. Issue and history writes made with the
// context passed to fn commit or roll back together.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.tx.WithinTx(ctx, fn)
}

// Ping checks backend connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.ping == nil {
		return nil
	}
	return s.ping(ctx)
}

// Close releases backend resources owned by the store.
func (s *Store) Close() error {
	if s == nil || s.close == nil {
		return nil
	}
	return s.close()
}
