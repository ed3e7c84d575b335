package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/issuedesk/issue-service/internal/catalog"
	"github.com/issuedesk/issue-service/internal/domain"
	"github.com/issuedesk/issue-service/internal/lifecycle"
	"github.com/issuedesk/issue-service/internal/repository"
	apperrors "github.com/issuedesk/issue-service/pkg/util"
)

func TestRegisterLoginAndChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	session, err := f.auth.RegisterUser(ctx, AccountInput{Username: "ada", Password: "analytical", Email: "Ada@Example.com"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, session.Role)
	assert.Equal(t, "ada@example.com", session.User.Email)
	assert.NotEmpty(t, session.Token)

	claims, err := f.auth.TokenManager().ParseToken(session.Token)
	require.NoError(t, err)
	assert.Equal(t, "ada", claims.Username)

	_, err = f.auth.RegisterUser(ctx, AccountInput{Username: "ada", Password: "analytical"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))

	_, err = f.auth.RegisterUser(ctx, AccountInput{Username: "short", Password: "abc"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	_, err = f.auth.RegisterUser(ctx, AccountInput{Username: "mail", Password: "password123", Email: "not-an-email"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	_, err = f.auth.Login(ctx, "ada", "wrong-password")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
	_, err = f.auth.Login(ctx, "nobody", "analytical")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))

	err = f.auth.ChangePassword(ctx, session.User.ID, "wrong-password", "difference")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	require.NoError(t, f.auth.ChangePassword(ctx, session.User.ID, "analytical", "difference"))

	_, err = f.auth.Login(ctx, "ada", "analytical")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
	login, err := f.auth.Login(ctx, "ada", "difference")
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, login.User.ID)
}

func TestLoginRejectsDeactivatedAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.account(t, "root", domain.RoleAdmin)
	tech := f.account(t, "tech", domain.RoleHardware)

	session, err := f.auth.Login(ctx, "tech", "password123")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleHardware, session.Role)

	_, err = f.users.SetActive(ctx, admin, admin.UserID, false)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	_, err = f.users.SetActive(ctx, tech, admin.UserID, false)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	user, err := f.users.SetActive(ctx, admin, tech.UserID, false)
	require.NoError(t, err)
	assert.False(t, user.IsActive)

	_, err = f.auth.Login(ctx, "tech", "password123")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
}

func TestUserServiceCreateAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.account(t, "root", domain.RoleAdmin)
	employee := f.account(t, "emp", domain.RoleUser)

	created, err := f.users.CreateUser(ctx, admin, AccountInput{Username: "legacy", Password: "password123"}, "employee")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, created.Role)

	_, err = f.users.CreateUser(ctx, admin, AccountInput{Username: "x", Password: "password123"}, "wizard")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	_, err = f.users.CreateUser(ctx, employee, AccountInput{Username: "y", Password: "password123"}, "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	_, err = f.users.ListActiveUsers(ctx, employee)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	users, err := f.users.ListActiveUsers(ctx, admin)
	require.NoError(t, err)
	names := map[string]domain.Role{}
	for _, summary := range users {
		names[summary.User.Username] = summary.Role
	}
	assert.Equal(t, map[string]domain.Role{
		"emp":    domain.RoleUser,
		"legacy": domain.RoleUser,
		"root":   domain.RoleAdmin,
	}, names)
}

func TestProfileGetOrCreateAndUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := &domain.User{Username: "bare", PasswordHash: "x", IsActive: true}
	require.NoError(t, f.store.Users.Create(ctx, user))

	profile, err := f.profiles.GetOrCreate(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, profile.Role)

	again, err := f.profiles.GetOrCreate(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, profile.CreatedAt.Unix(), again.CreatedAt.Unix())

	updatedUser, updatedProfile, err := f.profiles.UpdateProfile(ctx, user.ID, ProfileUpdate{
		FirstName:         ptr(" Bare "),
		LastName:          ptr("Metal"),
		Department:        ptr("IT"),
		ProfilePictureKey: ptr("avatars/1.png"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Bare Metal", updatedUser.DisplayName())
	assert.Equal(t, "IT", updatedProfile.Department)
	require.NotNil(t, updatedProfile.ProfilePictureKey)

	_, _, err = f.profiles.UpdateProfile(ctx, user.ID, ProfileUpdate{Email: ptr("bad@")})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestProfileSetRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.account(t, "root", domain.RoleAdmin)
	manager := f.account(t, "boss", domain.RoleManager)
	employee := f.account(t, "emp", domain.RoleUser)

	_, err := f.profiles.SetRole(ctx, manager, employee.UserID, "hardware")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	_, err = f.profiles.SetRole(ctx, admin, employee.UserID, "wizard")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	_, err = f.profiles.SetRole(ctx, admin, 4242, "hardware")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	profile, err := f.profiles.SetRole(ctx, admin, employee.UserID, " Hardware ")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleHardware, profile.Role)

	session, err := f.auth.Login(ctx, "emp", "password123")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleHardware, session.Role)

	_, err = f.issues.Claim(ctx, lifecycle.Actor{UserID: employee.UserID, Role: session.Role}, f.raise(t, admin, "printer").ID)
	require.NoError(t, err)
}

type recordingProfiles struct {
	repository.ProfileRepository
	lookups [][]int64
}

func (r *recordingProfiles) ListByUserIDs(ctx context.Context, ids []int64) ([]domain.UserProfile, error) {
	r.lookups = append(r.lookups, ids)
	return r.ProfileRepository.ListByUserIDs(ctx, ids)
}

func TestProfileRolesLooksUpEachUserOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tech := f.account(t, "tech", domain.RoleHardware)
	boss := f.account(t, "boss", domain.RoleManager)

	recorder := &recordingProfiles{ProfileRepository: f.store.Profiles}
	profiles := NewProfileService(recorder, f.store.Users, catalog.Default())

	ids := []int64{tech.UserID, boss.UserID, tech.UserID, tech.UserID, boss.UserID}
	roles, err := profiles.Roles(ctx, ids)
	require.NoError(t, err)
	assert.Equal(t, map[int64]domain.Role{
		tech.UserID: domain.RoleHardware,
		boss.UserID: domain.RoleManager,
	}, roles)
	require.Len(t, recorder.lookups, 1)
	assert.ElementsMatch(t, []int64{tech.UserID, boss.UserID}, recorder.lookups[0])
	assert.Equal(t, []int64{tech.UserID, boss.UserID, tech.UserID, tech.UserID, boss.UserID}, ids)
}
