package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/issuedesk/issue-service/internal/domain"
)

// ProfileRepository persists the one-to-one profile of each user.
type ProfileRepository interface {
	Get(ctx context.Context, userID int64) (*domain.UserProfile, error)
	// Ensure inserts profile unless one exists for the user, then returns the stored row.
	Ensure(ctx context.Context, profile *domain.UserProfile) (*domain.UserProfile, error)
	Update(ctx context.Context, profile *domain.UserProfile) error
	ListByUserIDs(ctx context.Context, userIDs []int64) ([]domain.UserProfile, error)
}

const profileColumns = `user_id, role, phone_number, department, bio, profile_picture_key, created_at, updated_at`

type profileRepository struct {
	pool *pgxpool.Pool
}

// NewProfileRepository returns a Postgres-backed implementation.
func NewProfileRepository(pool *pgxpool.Pool) ProfileRepository {
	return &profileRepository{pool: pool}
}

func (r *profileRepository) Get(ctx context.Context, userID int64) (*domain.UserProfile, error) {
	profile, err := scanProfile(r.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM user_profiles WHERE user_id=$1`, userID))
	if err != nil {
		return nil, mapPgError(err)
	}
	return profile, nil
}

func (r *profileRepository) Ensure(ctx context.Context, profile *domain.UserProfile) (*domain.UserProfile, error) {
	const query = `
        INSERT INTO user_profiles (user_id, role, phone_number, department, bio, profile_picture_key)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (user_id) DO NOTHING`
	if _, err := r.pool.Exec(ctx, query,
		profile.UserID,
		profile.Role,
		profile.PhoneNumber,
		profile.Department,
		profile.Bio,
		profile.ProfilePictureKey,
	); err != nil {
		return nil, mapPgError(err)
	}
	return r.Get(ctx, profile.UserID)
}

func (r *profileRepository) Update(ctx context.Context, profile *domain.UserProfile) error {
	const query = `
        UPDATE user_profiles SET role=$1, phone_number=$2, department=$3, bio=$4, profile_picture_key=$5, updated_at=NOW()
        WHERE user_id=$6
        RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query,
		profile.Role,
		profile.PhoneNumber,
		profile.Department,
		profile.Bio,
		profile.ProfilePictureKey,
		profile.UserID,
	).Scan(&profile.UpdatedAt)
	return mapPgError(err)
}

func (r *profileRepository) ListByUserIDs(ctx context.Context, userIDs []int64) ([]domain.UserProfile, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT `+profileColumns+` FROM user_profiles WHERE user_id = ANY($1)`, userIDs)
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

func scanProfile(row pgx.Row) (*domain.UserProfile, error) {
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
