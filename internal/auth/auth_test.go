package auth

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/issuedesk/issue-service/internal/catalog"
	"github.com/issuedesk/issue-service/internal/domain"
	"github.com/issuedesk/issue-service/internal/repository"
	apperrors "github.com/issuedesk/issue-service/pkg/util"
)

type fakeUsers struct {
	users map[int64]*domain.User
}

func (f *fakeUsers) Create(context.Context, *domain.User) error { return nil }
func (f *fakeUsers) Update(context.Context, *domain.User) error { return nil }
func (f *fakeUsers) GetByUsername(context.Context, string) (*domain.User, error) {
	return nil, repository.ErrNotFound
}
func (f *fakeUsers) ListActive(context.Context) ([]domain.User, error) { return nil, nil }
func (f *fakeUsers) ListByIDs(context.Context, []int64) ([]domain.User, error) { return nil, nil }
func (f *fakeUsers) GetByID(_ context.Context, id int64) (*domain.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return user, nil
}

type fakeProfiles struct {
	roles map[int64]domain.Role
}

func (f *fakeProfiles) GetOrCreate(_ context.Context, userID int64) (*domain.UserProfile, error) {
	role, ok := f.roles[userID]
	if !ok {
		role = domain.RoleUser
	}
	return &domain.UserProfile{UserID: userID, Role: role}, nil
}

func newTestApp(t *testing.T) (*fiber.App, *TokenManager) {
	t.Helper()
	tokens := NewTokenManager("secret", 5)
	users := &fakeUsers{users: map[int64]*domain.User{
		1: {ID: 1, Username: "emp", IsActive: true},
		2: {ID: 2, Username: "tech", IsActive: true},
		3: {ID: 3, Username: "gone", IsActive: false},
		4: {ID: 4, Username: "legacy", IsActive: true},
	}}
	profiles := &fakeProfiles{roles: map[int64]domain.Role{
		2: domain.RoleHardware,
		4: "employee",
	}}
	mw := NewAuthMiddleware(tokens, users, profiles, catalog.Default())

	app := fiber.New(fiber.Config{ErrorHandler: func(c *fiber.Ctx, err error) error {
		return c.SendStatus(apperrors.ToDomainError(err).HTTPStatus)
	}})
	app.Get("/me", mw.Handle, func(c *fiber.Ctx) error {
		principal, err := MustPrincipal(c)
		if err != nil {
			return err
		}
		return c.SendString(string(principal.Role))
	})
	app.Get("/triage", mw.Handle, RequireRole(domain.RoleHardware, domain.RoleManager), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusNoContent)
	})
	return app, tokens
}

func doRequest(t *testing.T, app *fiber.App, path, token string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestTokenRoundTrip(t *testing.T) {
	tokens := NewTokenManager("secret", 10)
	signed, expiresAt, err := tokens.GenerateToken(42, "alice", domain.RoleManager)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), expiresAt, 5*time.Second)

	claims, err := tokens.ParseToken(signed)
	require.NoError(t, err)
	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, domain.RoleManager, claims.Role)
	assert.NotEmpty(t, claims.ID)
}

func TestParseTokenRejectsForeignSecretAndExpiry(t *testing.T) {
	signed, _, err := NewTokenManager("other", 10).GenerateToken(1, "a", domain.RoleUser)
	require.NoError(t, err)
	_, err = NewTokenManager("secret", 10).ParseToken(signed)
	assert.Error(t, err)

	tokens := NewTokenManager("secret", 1)
	signed, _, err = tokens.GenerateToken(1, "a", domain.RoleUser)
	require.NoError(t, err)
	tokens.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = tokens.ParseToken(signed)
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hashed, err := HashPassword("s3cret-pass", 4)
	require.NoError(t, err)
	assert.NoError(t, ComparePassword(hashed, "s3cret-pass"))
	assert.Error(t, ComparePassword(hashed, "wrong"))
}

func TestMiddlewareLoadsPrincipal(t *testing.T) {
	app, tokens := newTestApp(t)

	token, _, err := tokens.GenerateToken(4, "legacy", domain.RoleUser)
	require.NoError(t, err)
	resp := doRequest(t, app, "/me", token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "user", string(body))
}

func TestMiddlewareRejections(t *testing.T) {
	app, tokens := newTestApp(t)

	resp := doRequest(t, app, "/me", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doRequest(t, app, "/me", "garbage")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	disabled, _, err := tokens.GenerateToken(3, "gone", domain.RoleUser)
	require.NoError(t, err)
	resp = doRequest(t, app, "/me", disabled)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	unknown, _, err := tokens.GenerateToken(99, "ghost", domain.RoleUser)
	require.NoError(t, err)
	resp = doRequest(t, app, "/me", unknown)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	badSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Username: "emp",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "emp",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = tokens.ParseToken(badSubject)
	require.Error(t, err)
	resp = doRequest(t, app, "/me", badSubject)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRequireRole(t *testing.T) {
	app, tokens := newTestApp(t)

	employee, _, err := tokens.GenerateToken(1, "emp", domain.RoleUser)
	require.NoError(t, err)
	resp := doRequest(t, app, "/triage", employee)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	tech, _, err := tokens.GenerateToken(2, "tech", domain.RoleHardware)
	require.NoError(t, err)
	resp = doRequest(t, app, "/triage", tech)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
