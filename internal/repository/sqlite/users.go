package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/issuedesk/issue-service/internal/domain"
	"github.com/issuedesk/issue-service/internal/repository"
)

var _ repository.UserRepository = (*userRepository)(nil)

const userColumns = `id, username, first_name, last_name, email, password_hash, is_active, created_at, updated_at`

type userRepository struct {
	db *sql.DB
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	ts := now()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, first_name, last_name, email, password_hash, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		strings.TrimSpace(user.Username),
		user.FirstName,
		user.LastName,
		user.Email,
		user.PasswordHash,
		user.IsActive,
		ts,
		ts,
	)
	if err != nil {
		return mapError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: user id: %w", err)
	}
	user.ID = id
	user.CreatedAt = ts
	user.UpdatedAt = ts
	return nil
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	ts := now()
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET first_name = ?, last_name = ?, email = ?, password_hash = ?, is_active = ?, updated_at = ?
		 WHERE id = ?`,
		user.FirstName,
		user.LastName,
		user.Email,
		user.PasswordHash,
		user.IsActive,
		ts,
		user.ID,
	)
	if err != nil {
		return mapError(err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return repository.ErrNotFound
	}
	user.UpdatedAt = ts
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		return nil, mapError(err)
	}
	return user, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, strings.TrimSpace(username)))
	if err != nil {
		return nil, mapError(err)
	}
	return user, nil
}

func (r *userRepository) ListActive(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE is_active = 1 ORDER BY username ASC`)
	if err != nil {
		return nil, err
	}
	return collectUsers(rows)
}

func (r *userRepository) ListByIDs(ctx context.Context, ids []int64) ([]domain.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	in, args := inClause(ids)
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE id IN `+in+` ORDER BY id ASC`, args...)
	if err != nil {
		return nil, err
	}
	return collectUsers(rows)
}

func collectUsers(rows *sql.Rows) ([]domain.User, error) {
	defer rows.Close()
	var result []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *user)
	}
	return result, rows.Err()
}

func scanUser(row scanner) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.FirstName,
		&user.LastName,
		&user.Email,
		&user.PasswordHash,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}
