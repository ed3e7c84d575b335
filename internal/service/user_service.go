package service

import (
	"context"
	"errors"

	"github.com/issuedesk/issue-service/internal/config"
	"github.com/issuedesk/issue-service/internal/domain"
	"github.com/issuedesk/issue-service/internal/lifecycle"
	"github.com/issuedesk/issue-service/internal/repository"
	apperrors "github.com/issuedesk/issue-service/pkg/util"
)

// UserSummary is an account with its effective role.
type UserSummary struct {
	User domain.User
	Role domain.Role
}

// UserService manages accounts on behalf of administrators.
type UserService struct {
	users    repository.UserRepository
	profiles *ProfileService
	accounts accounts
}

// UserDependencies bundles repositories for the user service.
type UserDependencies struct {
	UserRepo       repository.UserRepository
	ProfileRepo    repository.ProfileRepository
	ProfileService *ProfileService
}

// NewUserService constructs the service.
func NewUserService(cfg config.AuthConfig, deps UserDependencies) *UserService {
	return &UserService{
		users:    deps.UserRepo,
		profiles: deps.ProfileService,
		accounts: accounts{users: deps.UserRepo, profiles: deps.ProfileRepo, cfg: cfg},
	}
}

// SystemActor is the identity used by operator tooling that runs outside a request.
func SystemActor() lifecycle.Actor {
	return lifecycle.Actor{Role: domain.RoleAdmin}
}

// CreateUser creates an account with the given role.
func (s *UserService) CreateUser(ctx context.Context, actor lifecycle.Actor, input AccountInput, rawRole string) (*UserSummary, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, apperrors.NewForbidden("only admins can create users")
	}
	role := domain.RoleUser
	if rawRole != "" {
		normalized, ok := s.profiles.catalog.NormalizeRole(rawRole)
		if !ok {
			return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": rawRole})
		}
		role = normalized
	}

	user, profile, err := s.accounts.create(ctx, input, role)
	if err != nil {
		return nil, err
	}
	return &UserSummary{User: *user, Role: profile.Role}, nil
}

// ListActiveUsers returns the active accounts an issue can be assigned to.
func (s *UserService) ListActiveUsers(ctx context.Context, actor lifecycle.Actor) ([]UserSummary, error) {
	if !actor.Role.CanTriage() {
		return nil, apperrors.NewForbidden("role cannot list users")
	}
	users, err := s.users.ListActive(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	ids := make([]int64, len(users))
	for i := range users {
		ids[i] = users[i].ID
	}
	roles, err := s.profiles.Roles(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]UserSummary, len(users))
	for i, user := range users {
		role, ok := roles[user.ID]
		if !ok {
			role = domain.RoleUser
		}
		out[i] = UserSummary{User: user, Role: role}
	}
	return out, nil
}

// SetActive enables or disables an account. Admins cannot disable themselves.
func (s *UserService) SetActive(ctx context.Context, actor lifecycle.Actor, userID int64, active bool) (*domain.User, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, apperrors.NewForbidden("only admins can change account status")
	}
	if !active && actor.UserID == userID {
		return nil, apperrors.NewValidationError("cannot deactivate your own account", nil)
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("user", map[string]any{"user_id": userID})
		}
		return nil, apperrors.MapError(err)
	}
	if user.IsActive == active {
		return user, nil
	}
	user.IsActive = active
	if err := s.users.Update(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}
	return user, nil
}
