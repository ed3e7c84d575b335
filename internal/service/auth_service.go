package service

import (
	"context"
	"errors"
	"time"

	"github.com/issuedesk/issue-service/internal/auth"
	"github.com/issuedesk/issue-service/internal/config"
	"github.com/issuedesk/issue-service/internal/domain"
	"github.com/issuedesk/issue-service/internal/repository"
	apperrors "github.com/issuedesk/issue-service/pkg/util"
)

// Session is the result of a successful registration or login.
type Session struct {
	User      *domain.User
	Role      domain.Role
	Token     string
	ExpiresAt time.Time
}

// AuthService coordinates registration, login and password changes.
type AuthService struct {
	users    repository.UserRepository
	profiles *ProfileService
	accounts accounts
	tokenMgr *auth.TokenManager
	cfg      config.AuthConfig
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	UserRepo       repository.UserRepository
	ProfileRepo    repository.ProfileRepository
	ProfileService *ProfileService
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	return &AuthService{
		users:    deps.UserRepo,
		profiles: deps.ProfileService,
		accounts: accounts{users: deps.UserRepo, profiles: deps.ProfileRepo, cfg: cfg},
		tokenMgr: auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
		cfg:      cfg,
	}
}

// RegisterUser creates a self-service account with the user role and signs it in.
func (s *AuthService) RegisterUser(ctx context.Context, input AccountInput) (*Session, error) {
	user, profile, err := s.accounts.create(ctx, input, domain.RoleUser)
	if err != nil {
		return nil, err
	}
	return s.issue(user, profile.Role)
}

// Login authenticates an active user.
func (s *AuthService) Login(ctx context.Context, username, password string) (*Session, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, apperrors.MapError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	if !user.IsActive {
		return nil, apperrors.NewUnauthorized("account disabled")
	}

	profile, err := s.profiles.GetOrCreate(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	role, ok := s.profiles.catalog.NormalizeRole(string(profile.Role))
	if !ok {
		role = profile.Role
	}
	return s.issue(user, role)
}

// ChangePassword verifies the current password before storing the new one.
func (s *AuthService) ChangePassword(ctx context.Context, userID int64, currentPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewNotFound("user", map[string]any{"user_id": userID})
		}
		return apperrors.MapError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, currentPassword); err != nil {
		return apperrors.NewValidationError("current password is incorrect", nil)
	}
	if err := s.accounts.checkPassword(newPassword); err != nil {
		return err
	}

	hash, err := auth.HashPassword(newPassword, s.cfg.BcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	user.PasswordHash = hash
	return apperrors.MapError(s.users.Update(ctx, user))
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) issue(user *domain.User, role domain.Role) (*Session, error) {
	token, exp, err := s.tokenMgr.GenerateToken(user.ID, user.Username, role)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &Session{User: user, Role: role, Token: token, ExpiresAt: exp}, nil
}
