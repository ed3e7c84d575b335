package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/issuedesk/issue-service/internal/config"
	"github.com/issuedesk/issue-service/internal/domain"
	"github.com/issuedesk/issue-service/internal/persistence"
	"github.com/issuedesk/issue-service/internal/repository"
)

func newTestStore(t *testing.T) *repository.Store {
	t.Helper()
	db, err := persistence.OpenSQLite(context.Background(), config.StoreConfig{
		Driver:     config.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "issues.db"),
	}, zap.NewNop())
	require.NoError(t, err)

	store := NewStore(db)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func createUser(t *testing.T, store *repository.Store, username string) *domain.User {
	t.Helper()
	user := &domain.User{Username: username, PasswordHash: "x", IsActive: true}
	require.NoError(t, store.Users.Create(context.Background(), user))
	return user
}

func createIssue(t *testing.T, store *repository.Store, raisedBy int64, status domain.IssueStatus, priority domain.IssuePriority) *domain.Issue {
	t.Helper()
	issue := &domain.Issue{
		Title:       "issue",
		Description: "details",
		Priority:    priority,
		Status:      status,
		RaisedByID:  &raisedBy,
	}
	require.NoError(t, store.Issues.Create(context.Background(), issue))
	return issue
}

func TestUsersCreateAndLookup(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	alice := createUser(t, store, "alice")
	assert.NotZero(t, alice.ID)
	assert.False(t, alice.CreatedAt.IsZero())

	got, err := store.Users.GetByUsername(ctx, " alice ")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, got.ID)
	assert.True(t, got.IsActive)

	_, err = store.Users.GetByID(ctx, 999)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	err = store.Users.Create(ctx, &domain.User{Username: "alice", PasswordHash: "y"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestUsersListActiveSkipsDeactivated(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	createUser(t, store, "carol")
	bob := createUser(t, store, "bob")
	bob.IsActive = false
	require.NoError(t, store.Users.Update(ctx, bob))

	active, err := store.Users.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "carol", active[0].Username)

	byID, err := store.Users.ListByIDs(ctx, []int64{bob.ID})
	require.NoError(t, err)
	require.Len(t, byID, 1)
	assert.False(t, byID[0].IsActive)
}

func TestProfilesEnsureIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	user := createUser(t, store, "dave")

	first, err := store.Profiles.Ensure(ctx, &domain.UserProfile{UserID: user.ID, Role: domain.RoleHardware})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleHardware, first.Role)

	second, err := store.Profiles.Ensure(ctx, &domain.UserProfile{UserID: user.ID, Role: domain.RoleUser})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleHardware, second.Role)

	second.Department = "Stores"
	require.NoError(t, store.Profiles.Update(ctx, second))

	profiles, err := store.Profiles.ListByUserIDs(ctx, []int64{user.ID, 12345})
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "Stores", profiles[0].Department)

	_, err = store.Profiles.Get(ctx, 12345)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestIssueUpdateChecksVersion(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	user := createUser(t, store, "erin")
	issue := createIssue(t, store, user.ID, domain.IssueStatusPending, domain.IssuePriorityHigh)
	assert.Equal(t, int64(1), issue.Version)

	stale := *issue

	issue.Status = domain.IssueStatusClaimed
	issue.Claimed = true
	issue.AssigneeID = &user.ID
	require.NoError(t, store.Issues.Update(ctx, issue))
	assert.Equal(t, int64(2), issue.Version)

	stale.Status = domain.IssueStatusResolved
	err := store.Issues.Update(ctx, &stale)
	assert.ErrorIs(t, err, repository.ErrVersionConflict)

	stored, err := store.Issues.GetByID(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IssueStatusClaimed, stored.Status)
	assert.True(t, stored.Claimed)
	require.NotNil(t, stored.AssigneeID)
	assert.Equal(t, user.ID, *stored.AssigneeID)

	missing := *issue
	missing.ID = 4242
	assert.ErrorIs(t, store.Issues.Update(ctx, &missing), repository.ErrNotFound)
}

func TestIssueListFilters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	alice := createUser(t, store, "alice")
	bob := createUser(t, store, "bob")

	older := createIssue(t, store, alice.ID, domain.IssueStatusPending, domain.IssuePriorityLow)
	resolved := createIssue(t, store, alice.ID, domain.IssueStatusResolved, domain.IssuePriorityHigh)
	newer := createIssue(t, store, bob.ID, domain.IssueStatusPending, domain.IssuePriorityHigh)

	all, err := store.Issues.List(ctx, repository.IssueFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, newer.ID, all[0].ID)
	assert.Equal(t, older.ID, all[2].ID)

	mine, err := store.Issues.List(ctx, repository.IssueFilter{
		RaisedByID:      &alice.ID,
		ExcludeStatuses: []domain.IssueStatus{domain.IssueStatusResolved},
	})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, older.ID, mine[0].ID)

	high, err := store.Issues.Count(ctx, repository.IssueFilter{Priorities: []domain.IssuePriority{domain.IssuePriorityHigh}})
	require.NoError(t, err)
	assert.Equal(t, 2, high)

	queue, err := store.Issues.List(ctx, repository.IssueFilter{
		Statuses:   []domain.IssueStatus{domain.IssueStatusPending},
		Unassigned: true,
		Limit:      1,
	})
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, newer.ID, queue[0].ID)

	future := time.Now().Add(time.Hour)
	none, err := store.Issues.List(ctx, repository.IssueFilter{CreatedFrom: &future})
	require.NoError(t, err)
	assert.Empty(t, none)

	past := time.Now().Add(-time.Hour)
	recent, err := store.Issues.Count(ctx, repository.IssueFilter{CreatedFrom: &past, CreatedTo: &future})
	require.NoError(t, err)
	assert.Equal(t, 3, recent)

	closed, err := store.Issues.List(ctx, repository.IssueFilter{Statuses: []domain.IssueStatus{domain.IssueStatusResolved}})
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, resolved.ID, closed[0].ID)
}

func TestCommentsAndHistory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	user := createUser(t, store, "frank")
	issue := createIssue(t, store, user.ID, domain.IssueStatusPending, domain.IssuePriorityMedium)

	for _, content := range []string{"first", "second"} {
		require.NoError(t, store.Comments.Create(ctx, &domain.Comment{IssueID: issue.ID, AuthorID: &user.ID, Content: content}))
	}
	comments, err := store.Comments.ListByIssue(ctx, issue.ID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "first", comments[0].Content)
	assert.Equal(t, "second", comments[1].Content)

	entry := &domain.IssueHistory{
		IssueID:     issue.ID,
		ChangedByID: &user.ID,
		ChangeType:  domain.ChangeTypeStatus,
		OldValue:    map[string]any{"status": "pending"},
		NewValue:    map[string]any{"status": "claimed"},
	}
	require.NoError(t, store.History.Create(ctx, entry))
	require.NoError(t, store.History.Create(ctx, &domain.IssueHistory{IssueID: issue.ID, ChangeType: domain.ChangeTypeCreated}))

	history, err := store.History.ListByIssue(ctx, issue.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.ChangeTypeStatus, history[0].ChangeType)
	assert.Equal(t, "claimed", history[0].NewValue["status"])
	assert.Nil(t, history[1].OldValue)
	assert.Nil(t, history[1].ChangedByID)
}

func TestWithinTxCommitsOrRollsBack(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	alice := createUser(t, store, "alice")
	issue := createIssue(t, store, alice.ID, domain.IssueStatusPending, domain.IssuePriorityLow)

	boom := errors.New("boom")
	err := store.WithinTx(ctx, func(ctx context.Context) error {
		issue.Status = domain.IssueStatusResolved
		if err := store.Issues.Update(ctx, issue); err != nil {
			return err
		}
		require.NoError(t, store.History.Create(ctx, &domain.IssueHistory{IssueID: issue.ID, ChangeType: domain.ChangeTypeStatus}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	stored, err := store.Issues.GetByID(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IssueStatusPending, stored.Status)
	assert.Equal(t, int64(1), stored.Version)
	history, err := store.History.ListByIssue(ctx, issue.ID)
	require.NoError(t, err)
	assert.Empty(t, history)

	stored.Status = domain.IssueStatusClaimed
	require.NoError(t, store.WithinTx(ctx, func(ctx context.Context) error {
		if err := store.Issues.Update(ctx, stored); err != nil {
			return err
		}
		return store.History.Create(ctx, &domain.IssueHistory{IssueID: stored.ID, ChangeType: domain.ChangeTypeStatus})
	}))
	history, err = store.History.ListByIssue(ctx, issue.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestStorePing(t *testing.T) {
	store := newTestStore(t)
	assert.NoError(t, store.Ping(context.Background()))
}
