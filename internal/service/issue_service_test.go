package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/issuedesk/issue-service/internal/domain"
	"github.com/issuedesk/issue-service/internal/events"
	"github.com/issuedesk/issue-service/internal/lifecycle"
	"github.com/issuedesk/issue-service/internal/repository"
	apperrors "github.com/issuedesk/issue-service/pkg/util"
)

func TestCreateIssueRecordsHistoryAndEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	employee := f.account(t, "emp", domain.RoleUser)

	issue := f.raise(t, employee, "Printer jam")
	assert.Equal(t, domain.IssueStatusPending, issue.Status)
	assert.Equal(t, domain.IssuePriorityMedium, issue.Priority)
	assert.True(t, issue.IsRaisedBy(employee.UserID))

	detail, err := f.issues.GetIssue(ctx, employee, issue.ID)
	require.NoError(t, err)
	require.Len(t, detail.History, 1)
	assert.Equal(t, domain.ChangeTypeCreated, detail.History[0].ChangeType)
	assert.Equal(t, []events.EventType{events.EventIssueCreated}, f.recorder.types())

	_, err = f.issues.CreateIssue(ctx, employee, lifecycle.IssueFields{Title: " "})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestClaimThenResolve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	employee := f.account(t, "emp", domain.RoleUser)
	tech := f.account(t, "tech", domain.RoleHardware)
	issue := f.raise(t, employee, "Broken monitor")

	_, err := f.issues.Claim(ctx, employee, issue.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	claimed, err := f.issues.Claim(ctx, tech, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IssueStatusClaimed, claimed.Status)
	assert.True(t, claimed.Claimed)
	assert.True(t, claimed.IsAssignedTo(tech.UserID))

	_, err = f.issues.Claim(ctx, tech, issue.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))

	resolved, err := f.issues.Resolve(ctx, tech, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IssueStatusResolved, resolved.Status)

	again, err := f.issues.Resolve(ctx, tech, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, resolved.Version, again.Version)

	detail, err := f.issues.GetIssue(ctx, employee, issue.ID)
	require.NoError(t, err)
	changeTypes := make([]domain.IssueChangeType, len(detail.History))
	for i, entry := range detail.History {
		changeTypes[i] = entry.ChangeType
	}
	assert.Equal(t, []domain.IssueChangeType{domain.ChangeTypeCreated, domain.ChangeTypeClaim, domain.ChangeTypeStatus}, changeTypes)
	assert.Equal(t, []events.EventType{
		events.EventIssueCreated,
		events.EventIssueClaimed,
		events.EventIssueResolved,
	}, f.recorder.types())
}

func TestConcurrentClaimsHaveSingleWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	employee := f.account(t, "emp", domain.RoleUser)
	issue := f.raise(t, employee, "Network down")

	const racers = 6
	techs := make([]lifecycle.Actor, racers)
	for i := range techs {
		techs[i] = f.account(t, fmt.Sprintf("tech%d", i), domain.RoleHardware)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []int64
		errs    []error
	)
	for _, tech := range techs {
		wg.Add(1)
		go func(actor lifecycle.Actor) {
			defer wg.Done()
			_, err := f.issues.Claim(ctx, actor, issue.ID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			winners = append(winners, actor.UserID)
		}(tech)
	}
	wg.Wait()

	require.Len(t, winners, 1)
	require.Len(t, errs, racers-1)
	for _, err := range errs {
		assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict), err.Error())
	}

	stored, err := f.store.Issues.GetByID(ctx, issue.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsAssignedTo(winners[0]))
	assert.Equal(t, domain.IssueStatusClaimed, stored.Status)
}

type conflictingIssues struct {
	repository.IssueRepository
	mu        sync.Mutex
	conflicts int
}

func (c *conflictingIssues) Update(ctx context.Context, issue *domain.Issue) error {
	c.mu.Lock()
	if c.conflicts > 0 {
		c.conflicts--
		c.mu.Unlock()
		return repository.ErrVersionConflict
	}
	c.mu.Unlock()
	return c.IssueRepository.Update(ctx, issue)
}

func TestWriteConflictsAreRetried(t *testing.T) {
	base := newFixture(t)
	flaky := &conflictingIssues{IssueRepository: base.store.Issues, conflicts: 2}
	f := newFixtureWithIssues(t, base.store, flaky)
	ctx := context.Background()

	employee := f.account(t, "emp", domain.RoleUser)
	tech := f.account(t, "tech", domain.RoleHardware)
	issue := f.raise(t, employee, "Flaky")

	claimed, err := f.issues.Claim(ctx, tech, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IssueStatusClaimed, claimed.Status)
	assert.Equal(t, int64(2), f.metrics.Snapshot().WriteConflicts)

	flaky.conflicts = 10
	_, err = f.issues.Resolve(ctx, tech, issue.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))

	stored, err := f.store.Issues.GetByID(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IssueStatusClaimed, stored.Status)
}

type failingHistory struct {
	repository.HistoryRepository
}

func (failingHistory) Create(context.Context, *domain.IssueHistory) error {
	return errors.New("history insert failed")
}

func TestHistoryFailureRollsBackIssueWrite(t *testing.T) {
	base := newFixture(t)
	f := newFixtureWithRepos(t, base.store, base.store.Issues, failingHistory{base.store.History})
	ctx := context.Background()

	employee := base.account(t, "emp", domain.RoleUser)
	tech := base.account(t, "tech", domain.RoleHardware)
	issue := base.raise(t, employee, "Dead monitor")

	_, err := f.issues.Claim(ctx, tech, issue.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInternal))

	stored, err := base.store.Issues.GetByID(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IssueStatusPending, stored.Status)
	assert.False(t, stored.Claimed)
	assert.Nil(t, stored.AssigneeID)
	assert.Equal(t, issue.Version, stored.Version)
	assert.Empty(t, f.recorder.types())

	claimed, err := base.issues.Claim(ctx, tech, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IssueStatusClaimed, claimed.Status)

	_, err = f.issues.CreateIssue(ctx, employee, lifecycle.IssueFields{Title: "Ghost", Description: "never stored"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInternal))
	mine, err := base.issues.MyIssues(ctx, employee, Page{})
	require.NoError(t, err)
	assert.Equal(t, 1, mine.Total)
	assert.Empty(t, f.recorder.types())
}

func TestUpdateStatusAndAssignment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	employee := f.account(t, "emp", domain.RoleUser)
	manager := f.account(t, "boss", domain.RoleManager)
	tech := f.account(t, "tech", domain.RoleHardware)
	retired := f.account(t, "retired", domain.RoleHardware)
	_, err := f.users.SetActive(ctx, SystemActor(), retired.UserID, false)
	require.NoError(t, err)
	issue := f.raise(t, employee, "Keyboard")

	_, err = f.issues.UpdateStatusAndAssignment(ctx, employee, issue.ID, UpdateInput{Status: ptr("resolved")})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	result, err := f.issues.UpdateStatusAndAssignment(ctx, manager, issue.ID, UpdateInput{
		Status:     ptr("archived"),
		AssignedTo: ptr(retired.UserID),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{lifecycle.FieldStatus, lifecycle.FieldAssignee}, result.Skipped)
	assert.Equal(t, domain.IssueStatusPending, result.Issue.Status)
	assert.Nil(t, result.Issue.AssigneeID)

	result, err = f.issues.UpdateStatusAndAssignment(ctx, manager, issue.ID, UpdateInput{
		Status:     ptr("in_progress"),
		AssignedTo: ptr(tech.UserID),
	})
	require.NoError(t, err)
	assert.Empty(t, result.Skipped)
	assert.Equal(t, domain.IssueStatusInProgress, result.Issue.Status)
	assert.True(t, result.Issue.IsAssignedTo(tech.UserID))

	result, err = f.issues.UpdateStatusAndAssignment(ctx, manager, issue.ID, UpdateInput{AssignedTo: ptr(int64(9999))})
	require.NoError(t, err)
	assert.Equal(t, []string{lifecycle.FieldAssignee}, result.Skipped)
	assert.True(t, result.Issue.IsAssignedTo(tech.UserID))

	assert.Contains(t, f.recorder.types(), events.EventIssueAssigned)
	assert.Contains(t, f.recorder.types(), events.EventIssueStatusChanged)
}

func TestVisibleIssuesPerRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.account(t, "alice", domain.RoleUser)
	bob := f.account(t, "bob", domain.RoleUser)
	tech := f.account(t, "tech", domain.RoleHardware)
	admin := f.account(t, "root", domain.RoleAdmin)

	mine := f.raise(t, alice, "mine")
	done := f.raise(t, alice, "done")
	f.raise(t, bob, "theirs")

	_, err := f.issues.Claim(ctx, tech, mine.ID)
	require.NoError(t, err)
	_, err = f.issues.Resolve(ctx, admin, done.ID)
	require.NoError(t, err)

	list, err := f.issues.VisibleIssues(ctx, alice, Page{})
	require.NoError(t, err)
	require.Len(t, list.Issues, 1)
	assert.Equal(t, mine.ID, list.Issues[0].ID)

	list, err = f.issues.VisibleIssues(ctx, tech, Page{})
	require.NoError(t, err)
	require.Len(t, list.Issues, 1)
	assert.Equal(t, mine.ID, list.Issues[0].ID)

	list, err = f.issues.VisibleIssues(ctx, admin, Page{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, list.Issues, 2)
	assert.Equal(t, 3, list.Total)

	list, err = f.issues.MyIssues(ctx, alice, Page{})
	require.NoError(t, err)
	assert.Equal(t, 2, list.Total)

	_, err = f.issues.VisibleIssues(ctx, lifecycle.Actor{UserID: alice.UserID, Role: "janitor"}, Page{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConfiguration))
}

func TestClaimQueueAndListAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	employee := f.account(t, "emp", domain.RoleUser)
	tech := f.account(t, "tech", domain.RoleHardware)
	manager := f.account(t, "boss", domain.RoleManager)

	open := f.raise(t, employee, "open")
	taken := f.raise(t, employee, "taken")
	_, err := f.issues.Claim(ctx, tech, taken.ID)
	require.NoError(t, err)

	queue, err := f.issues.ClaimQueue(ctx, tech, Page{})
	require.NoError(t, err)
	require.Len(t, queue.Issues, 1)
	assert.Equal(t, open.ID, queue.Issues[0].ID)

	_, err = f.issues.ClaimQueue(ctx, employee, Page{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	all, err := f.issues.ListAll(ctx, manager, IssueListFilter{Statuses: []domain.IssueStatus{domain.IssueStatusClaimed}})
	require.NoError(t, err)
	require.Len(t, all.Issues, 1)
	assert.Equal(t, taken.ID, all.Issues[0].ID)

	_, err = f.issues.ListAll(ctx, tech, IssueListFilter{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
}

func TestIssueDetailAccessAndComments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.account(t, "alice", domain.RoleUser)
	bob := f.account(t, "bob", domain.RoleUser)
	tech := f.account(t, "tech", domain.RoleHardware)
	issue := f.raise(t, alice, "Projector")

	_, err := f.issues.GetIssue(ctx, bob, issue.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	_, err = f.issues.GetIssue(ctx, alice, 4242)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	_, err = f.issues.AddComment(ctx, alice, issue.ID, "   ")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	comment, err := f.issues.AddComment(ctx, tech, issue.ID, "On my way")
	require.NoError(t, err)
	assert.NotZero(t, comment.ID)

	_, err = f.issues.AddComment(ctx, bob, issue.ID, "me too")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	detail, err := f.issues.GetIssue(ctx, alice, issue.ID)
	require.NoError(t, err)
	require.Len(t, detail.Comments, 1)
	assert.Equal(t, "On my way", detail.Comments[0].Content)

	people, err := f.issues.Participants(ctx, []domain.Issue{*detail.Issue})
	require.NoError(t, err)
	assert.Equal(t, "alice", people[alice.UserID].Username)
}
