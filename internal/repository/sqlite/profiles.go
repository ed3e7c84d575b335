package sqlite

import (
	"context"
	"database/sql"

	"github.com/issuedesk/issue-service/internal/domain"
	"github.com/issuedesk/issue-service/internal/repository"
)

var _ repository.ProfileRepository = (*profileRepository)(nil)

const profileColumns = `user_id, role, phone_number, department, bio, profile_picture_key, created_at, updated_at`

type profileRepository struct {
	db *sql.DB
}

func (r *profileRepository) Get(ctx context.Context, userID int64) (*domain.UserProfile, error) {
	profile, err := scanProfile(r.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM user_profiles WHERE user_id = ?`, userID))
	if err != nil {
		return nil, mapError(err)
	}
	return profile, nil
}

func (r *profileRepository) Ensure(ctx context.Context, profile *domain.UserProfile) (*domain.UserProfile, error) {
	ts := now()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_profiles (user_id, role, phone_number, department, bio, profile_picture_key, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id) DO NOTHING`,
		profile.UserID,
		string(profile.Role),
		profile.PhoneNumber,
		profile.Department,
		profile.Bio,
		profile.ProfilePictureKey,
		ts,
		ts,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return r.Get(ctx, profile.UserID)
}

func (r *profileRepository) Update(ctx context.Context, profile *domain.UserProfile) error {
	ts := now()
	res, err := r.db.ExecContext(ctx,
		`UPDATE user_profiles SET role = ?, phone_number = ?, department = ?, bio = ?, profile_picture_key = ?, updated_at = ?
		 WHERE user_id = ?`,
		string(profile.Role),
		profile.PhoneNumber,
		profile.Department,
		profile.Bio,
		profile.ProfilePictureKey,
		ts,
		profile.UserID,
	)
	if err != nil {
		return mapError(err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return repository.ErrNotFound
	}
	profile.UpdatedAt = ts
	return nil
}

func (r *profileRepository) ListByUserIDs(ctx context.Context, userIDs []int64) ([]domain.UserProfile, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	in, args := inClause(userIDs)
	rows, err := r.db.QueryContext(ctx, `SELECT `+profileColumns+` FROM user_profiles WHERE user_id IN `+in, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.UserProfile
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *profile)
	}
	return result, rows.Err()
}

func scanProfile(row scanner) (*domain.UserProfile, error) {
	var profile domain.UserProfile
	if err := row.Scan(
		&profile.UserID,
		&profile.Role,
		&profile.PhoneNumber,
		&profile.Department,
		&profile.Bio,
		&profile.ProfilePictureKey,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &profile, nil
}
