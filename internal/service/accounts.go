package service

import (
	"context"
	"errors"
	"strings"

	"github.com/issuedesk/issue-service/internal/auth"
	"github.com/issuedesk/issue-service/internal/config"
	"github.com/issuedesk/issue-service/internal/domain"
	"github.com/issuedesk/issue-service/internal/repository"
	apperrors "github.com/issuedesk/issue-service/pkg/util"
)

// AccountInput describes a new account.
type AccountInput struct {
	Username  string
	Password  string
	FirstName string
	LastName  string
	Email     string
}

// accounts creates users together with their profile.
type accounts struct {
	users    repository.UserRepository
	profiles repository.ProfileRepository
	cfg      config.AuthConfig
}

func (a accounts) create(ctx context.Context, input AccountInput, role domain.Role) (*domain.User, *domain.UserProfile, error) {
	username := strings.TrimSpace(input.Username)
	var missing []string
	if username == "" {
		missing = append(missing, "username")
	}
	if input.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return nil, nil, apperrors.NewValidationError("required fields missing", map[string]any{"fields": missing})
	}
	if err := a.checkPassword(input.Password); err != nil {
		return nil, nil, err
	}
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return nil, nil, err
	}

	hash, err := auth.HashPassword(input.Password, a.cfg.BcryptCost)
	if err != nil {
		return nil, nil, apperrors.NewInternalError(err)
	}
	user := &domain.User{
		Username:     username,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		Email:        email,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := a.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, nil, apperrors.NewConflict("username already taken", map[string]any{"username": username})
		}
		return nil, nil, apperrors.MapError(err)
	}

	profile, err := a.profiles.Ensure(ctx, &domain.UserProfile{UserID: user.ID, Role: role})
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	return user, profile, nil
}

func (a accounts) checkPassword(password string) error {
	if len([]rune(password)) < a.cfg.MinPasswordLength {
		return apperrors.NewValidationError("password too short", map[string]any{"min_length": a.cfg.MinPasswordLength})
	}
	return nil
}
