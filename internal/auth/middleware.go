package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/issuedesk/issue-service/internal/catalog"
	"github.com/issuedesk/issue-service/internal/domain"
	"github.com/issuedesk/issue-service/internal/lifecycle"
	"github.com/issuedesk/issue-service/internal/repository"
	apperrors "github.com/issuedesk/issue-service/pkg/util"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	User    *domain.User
	Profile *domain.UserProfile
	// Role is the catalog-normalized profile role. An unrecognized stored value is kept
	// verbatim so role-dependent operations can report the misconfiguration.
	Role domain.Role
}

// Actor returns the lifecycle identity of the principal.
func (p *Principal) Actor() lifecycle.Actor {
	return lifecycle.Actor{UserID: p.User.ID, Role: p.Role}
}

// ProfileResolver returns the profile of a user, creating the default one when absent.
type ProfileResolver interface {
	GetOrCreate(ctx context.Context, userID int64) (*domain.UserProfile, error)
}

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	tokens   *TokenManager
	users    repository.UserRepository
	profiles ProfileResolver
	catalog  *catalog.Catalog
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, users repository.UserRepository, profiles ProfileResolver, c *catalog.Catalog) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, users: users, profiles: profiles, catalog: c}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(strings.TrimSpace(parts[1]))
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}
	userID, err := claims.UserID()
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	principal, err := m.Resolve(c.UserContext(), userID)
	if err != nil {
		return err
	}

	c.Locals(principalKey, principal)
	return c.Next()
}

// Resolve loads the active user and profile behind userID.
func (m *AuthMiddleware) Resolve(ctx context.Context, userID int64) (*Principal, error) {
	user, err := m.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewUnauthorized("user not found")
		}
		return nil, apperrors.MapError(err)
	}
	if !user.IsActive {
		return nil, apperrors.NewUnauthorized("account disabled")
	}

	profile, err := m.profiles.GetOrCreate(ctx, user.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	role, ok := m.catalog.NormalizeRole(string(profile.Role))
	if !ok {
		role = profile.Role
	}
	return &Principal{User: user, Profile: profile, Role: role}, nil
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}

// MustPrincipal retrieves the principal or fails with 401.
func MustPrincipal(c *fiber.Ctx) (*Principal, error) {
	principal, ok := PrincipalFromContext(c)
	if !ok || principal == nil || principal.User == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return principal, nil
}
