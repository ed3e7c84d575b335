package service

import (
	"context"
	"errors"
	"net/mail"
	"slices"
	"strings"

	"github.com/issuedesk/issue-service/internal/catalog"
	"github.com/issuedesk/issue-service/internal/domain"
	"github.com/issuedesk/issue-service/internal/lifecycle"
	"github.com/issuedesk/issue-service/internal/repository"
	apperrors "github.com/issuedesk/issue-service/pkg/util"
)

// ProfileService owns the one-to-one profile of every user. Profiles are created lazily
// with the user role the first time they are needed.
type ProfileService struct {
	profiles repository.ProfileRepository
	users    repository.UserRepository
	catalog  *catalog.Catalog
}

// ProfileUpdate lists the editable account and profile fields. Nil fields are unchanged.
type ProfileUpdate struct {
	FirstName         *string
	LastName          *string
	Email             *string
	PhoneNumber       *string
	Department        *string
	Bio               *string
	ProfilePictureKey *string
}

// NewProfileService constructs the service.
func NewProfileService(profiles repository.ProfileRepository, users repository.UserRepository, c *catalog.Catalog) *ProfileService {
	return &ProfileService{profiles: profiles, users: users, catalog: c}
}

// GetOrCreate returns the profile of userID, creating a user-role profile when absent.
func (s *ProfileService) GetOrCreate(ctx context.Context, userID int64) (*domain.UserProfile, error) {
	profile, err := s.profiles.Ensure(ctx, &domain.UserProfile{UserID: userID, Role: domain.RoleUser})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return profile, nil
}

// UpdateProfile edits the caller's own account details and profile.
func (s *ProfileService) UpdateProfile(ctx context.Context, userID int64, update ProfileUpdate) (*domain.User, *domain.UserProfile, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, apperrors.NewNotFound("user", map[string]any{"user_id": userID})
		}
		return nil, nil, apperrors.MapError(err)
	}
	profile, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	if update.Email != nil {
		email, err := normalizeEmail(*update.Email)
		if err != nil {
			return nil, nil, err
		}
		user.Email = email
	}
	assignTrimmed(&user.FirstName, update.FirstName)
	assignTrimmed(&user.LastName, update.LastName)
	assignTrimmed(&profile.PhoneNumber, update.PhoneNumber)
	assignTrimmed(&profile.Department, update.Department)
	assignTrimmed(&profile.Bio, update.Bio)
	if update.ProfilePictureKey != nil {
		key := strings.TrimSpace(*update.ProfilePictureKey)
		if key == "" {
			profile.ProfilePictureKey = nil
		} else {
			profile.ProfilePictureKey = &key
		}
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	if err := s.profiles.Update(ctx, profile); err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	return user, profile, nil
}

// SetRole changes the role of userID. Only admins may do so.
func (s *ProfileService) SetRole(ctx context.Context, actor lifecycle.Actor, userID int64, rawRole string) (*domain.UserProfile, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, apperrors.NewForbidden("only admins can change roles")
	}
	role, ok := s.catalog.NormalizeRole(rawRole)
	if !ok {
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": rawRole})
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("user", map[string]any{"user_id": userID})
		}
		return nil, apperrors.MapError(err)
	}

	profile, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile.Role == role {
		return profile, nil
	}
	profile.Role = role
	if err := s.profiles.Update(ctx, profile); err != nil {
		return nil, apperrors.MapError(err)
	}
	return profile, nil
}

// Roles returns the roles of userIDs keyed by user id. Repeated ids are looked up once.
// Users without a profile are absent.
func (s *ProfileService) Roles(ctx context.Context, userIDs []int64) (map[int64]domain.Role, error) {
	out := make(map[int64]domain.Role, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	ids := slices.Clone(userIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)
	profiles, err := s.profiles.ListByUserIDs(ctx, ids)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	for _, profile := range profiles {
		role, ok := s.catalog.NormalizeRole(string(profile.Role))
		if !ok {
			role = profile.Role
		}
		out[profile.UserID] = role
	}
	return out, nil
}

func assignTrimmed(dst *string, val *string) {
	if val != nil {
		*dst = strings.TrimSpace(*val)
	}
}

func normalizeEmail(raw string) (string, error) {
	email := strings.TrimSpace(raw)
	if email == "" {
		return "", nil
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperrors.NewValidationError("invalid email", map[string]any{"email": raw})
	}
	return strings.ToLower(email), nil
}
