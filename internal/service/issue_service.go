package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/issuedesk/issue-service/internal/config"
	"github.com/issuedesk/issue-service/internal/domain"
	"github.com/issuedesk/issue-service/internal/events"
	"github.com/issuedesk/issue-service/internal/lifecycle"
	"github.com/issuedesk/issue-service/internal/observability"
	"github.com/issuedesk/issue-service/internal/repository"
	apperrors "github.com/issuedesk/issue-service/pkg/util"
)

// IssueService coordinates issue workflows on top of the lifecycle engine.
type IssueService struct {
	issues     repository.IssueRepository
	comments   repository.CommentRepository
	history    repository.HistoryRepository
	users      repository.UserRepository
	tx         repository.Transactor
	engine     *lifecycle.Engine
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	cfg        config.IssuesConfig
}

// IssueDependencies bundles collaborators for the issue service.
type IssueDependencies struct {
	IssueRepo   repository.IssueRepository
	CommentRepo repository.CommentRepository
	HistoryRepo repository.HistoryRepository
	UserRepo    repository.UserRepository
	// Tx makes an issue write and its history rows atomic. Nil runs them unwrapped.
	Tx          repository.Transactor
	Engine      *lifecycle.Engine
	Dispatcher  events.Dispatcher
	Metrics     *observability.Metrics
	Logger      *zap.Logger
}

// UpdateInput is the payload of a status/assignment update. AssignedTo is the user id of
// the new assignee.
type UpdateInput struct {
	Status     *string
	AssignedTo *int64
}

// UpdateResult carries the updated issue and the fields that were ignored.
type UpdateResult struct {
	Issue   *domain.Issue
	Skipped []string
}

// Page bounds a listing.
type Page struct {
	Limit  int
	Offset int
}

// IssueList is one page of issues.
type IssueList struct {
	Issues []domain.Issue
	Total  int
	Limit  int
	Offset int
}

// IssueListFilter narrows the privileged issue list.
type IssueListFilter struct {
	Statuses    []domain.IssueStatus
	Priorities  []domain.IssuePriority
	AssigneeID  *int64
	Unassigned  bool
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Page
}

// IssueDetail is an issue with its thread and audit trail.
type IssueDetail struct {
	Issue    *domain.Issue
	Comments []domain.Comment
	History  []domain.IssueHistory
}

// NewIssueService constructs the service.
func NewIssueService(cfg config.IssuesConfig, deps IssueDependencies) *IssueService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tx := deps.Tx
	if tx == nil {
		tx = repository.NoTx
	}
	if cfg.MaxWriteRetries <= 0 {
		cfg.MaxWriteRetries = 5
	}
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = 50
	}
	if cfg.MaxPageSize < cfg.DefaultPageSize {
		cfg.MaxPageSize = cfg.DefaultPageSize
	}
	return &IssueService{
		issues:     deps.IssueRepo,
		comments:   deps.CommentRepo,
		history:    deps.HistoryRepo,
		users:      deps.UserRepo,
		tx:         tx,
		engine:     deps.Engine,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		cfg:        cfg,
	}
}

// CreateIssue raises a new pending issue on behalf of actor.
func (s *IssueService) CreateIssue(ctx context.Context, actor lifecycle.Actor, fields lifecycle.IssueFields) (*domain.Issue, error) {
	issue, err := s.engine.NewIssue(actor, fields)
	if err != nil {
		return nil, err
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.issues.Create(ctx, issue); err != nil {
			return err
		}
		return s.recordHistory(ctx, actor, issue.ID, domain.ChangeTypeCreated, nil, map[string]any{
			"status":   issue.Status,
			"priority": issue.Priority,
		})
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publishEvent(ctx, events.Event{
		Type:    events.EventIssueCreated,
		IssueID: issue.ID,
		Actor:   eventActor(actor),
		Payload: events.IssueCreatedPayload{
			Title:    issue.Title,
			Category: issue.Category,
			Priority: issue.Priority,
		},
	})
	return issue, nil
}

// Claim lets a hardware technician take a pending issue. When several technicians race,
// exactly one wins; the others observe a non-pending issue and get a conflict.
func (s *IssueService) Claim(ctx context.Context, actor lifecycle.Actor, issueID int64) (*domain.Issue, error) {
	issue, change, err := s.mutate(ctx, actor, issueID, func(issue *domain.Issue) (lifecycle.Change, error) {
		return s.engine.Claim(issue, actor)
	})
	if err != nil {
		return nil, err
	}
	s.publishChange(ctx, actor, issue.ID, change)
	return issue, nil
}

// UpdateStatusAndAssignment applies the optional status and assignee of input. A status
// outside the catalog or an assignee that is not an active user is skipped and reported.
func (s *IssueService) UpdateStatusAndAssignment(ctx context.Context, actor lifecycle.Actor, issueID int64, input UpdateInput) (*UpdateResult, error) {
	if !actor.Role.CanTriage() {
		return nil, apperrors.NewForbidden("role cannot update issue status or assignment")
	}

	var skipped []string
	req := lifecycle.UpdateRequest{Status: input.Status}
	if input.AssignedTo != nil {
		assignee, err := s.activeUser(ctx, *input.AssignedTo)
		if err != nil {
			return nil, err
		}
		if assignee != nil {
			req.AssigneeID = &assignee.ID
		} else {
			skipped = append(skipped, lifecycle.FieldAssignee)
		}
	}

	issue, change, err := s.mutate(ctx, actor, issueID, func(issue *domain.Issue) (lifecycle.Change, error) {
		return s.engine.Update(issue, actor, req)
	})
	if err != nil {
		return nil, err
	}
	s.publishChange(ctx, actor, issue.ID, change)
	skipped = append(change.Skipped, skipped...)
	if len(skipped) > 0 {
		s.logger.Info("issue update skipped fields",
			zap.Int64("issue_id", issueID),
			zap.Int64("actor_id", actor.UserID),
			zap.Strings("skipped", skipped))
	}
	return &UpdateResult{Issue: issue, Skipped: skipped}, nil
}

// Resolve marks an issue resolved. Resolving a resolved issue succeeds without changes.
func (s *IssueService) Resolve(ctx context.Context, actor lifecycle.Actor, issueID int64) (*domain.Issue, error) {
	issue, change, err := s.mutate(ctx, actor, issueID, func(issue *domain.Issue) (lifecycle.Change, error) {
		return s.engine.Resolve(issue, actor)
	})
	if err != nil {
		return nil, err
	}
	s.publishChange(ctx, actor, issue.ID, change)
	return issue, nil
}

// VisibleIssues returns the dashboard listing for actor.
func (s *IssueService) VisibleIssues(ctx context.Context, actor lifecycle.Actor, page Page) (*IssueList, error) {
	scope, err := s.engine.Visibility(actor)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, repository.IssueFilter{
		RaisedByID:      scope.RaisedByID,
		AssigneeID:      scope.AssigneeID,
		Statuses:        scope.Statuses,
		ExcludeStatuses: scope.ExcludeStatuses,
	}, page)
}

// ClaimQueue lists pending issues nobody has taken yet.
func (s *IssueService) ClaimQueue(ctx context.Context, actor lifecycle.Actor, page Page) (*IssueList, error) {
	if !s.engine.CanSeeQueue(actor) {
		return nil, apperrors.NewForbidden("role cannot view the claim queue")
	}
	return s.list(ctx, repository.IssueFilter{
		Statuses:   []domain.IssueStatus{domain.IssueStatusPending},
		Unassigned: true,
	}, page)
}

// MyIssues lists every issue actor raised, resolved ones included.
func (s *IssueService) MyIssues(ctx context.Context, actor lifecycle.Actor, page Page) (*IssueList, error) {
	raisedBy := actor.UserID
	return s.list(ctx, repository.IssueFilter{RaisedByID: &raisedBy}, page)
}

// ListAll returns the privileged, filterable issue list.
func (s *IssueService) ListAll(ctx context.Context, actor lifecycle.Actor, filter IssueListFilter) (*IssueList, error) {
	if !actor.Role.Privileged() {
		return nil, apperrors.NewForbidden("only managers and admins can list all issues")
	}
	return s.list(ctx, repository.IssueFilter{
		AssigneeID:  filter.AssigneeID,
		Unassigned:  filter.Unassigned,
		Statuses:    filter.Statuses,
		Priorities:  filter.Priorities,
		CreatedFrom: filter.CreatedFrom,
		CreatedTo:   filter.CreatedTo,
	}, filter.Page)
}

// GetIssue returns an issue with its comments and history.
func (s *IssueService) GetIssue(ctx context.Context, actor lifecycle.Actor, issueID int64) (*IssueDetail, error) {
	issue, err := s.load(ctx, issueID)
	if err != nil {
		return nil, err
	}
	if !s.engine.CanView(issue, actor) {
		return nil, apperrors.NewForbidden("access denied")
	}

	comments, err := s.comments.ListByIssue(ctx, issue.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	history := []domain.IssueHistory{}
	if s.history != nil {
		history, err = s.history.ListByIssue(ctx, issue.ID)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
	}
	return &IssueDetail{Issue: issue, Comments: comments, History: history}, nil
}

// AddComment appends a comment to the issue thread.
func (s *IssueService) AddComment(ctx context.Context, actor lifecycle.Actor, issueID int64, content string) (*domain.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.NewValidationError("comment content required", map[string]any{"fields": []string{"content"}})
	}
	issue, err := s.load(ctx, issueID)
	if err != nil {
		return nil, err
	}
	if !s.engine.CanView(issue, actor) {
		return nil, apperrors.NewForbidden("access denied")
	}

	authorID := actor.UserID
	comment := &domain.Comment{IssueID: issue.ID, AuthorID: &authorID, Content: content}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publishEvent(ctx, events.Event{
		Type:    events.EventCommentAdded,
		IssueID: issue.ID,
		Actor:   eventActor(actor),
		Payload: events.CommentAddedPayload{
			CommentID:   comment.ID,
			BodyPreview: stringPreview(comment.Content, 120),
		},
	})
	return comment, nil
}

// Participants loads the users referenced by issues, keyed by id.
func (s *IssueService) Participants(ctx context.Context, issues []domain.Issue) (map[int64]domain.User, error) {
	return participants(ctx, s.users, issues)
}

// mutate loads the issue, applies rule and saves conditionally on the loaded version
// together with its history rows, re-running the rule against fresh state after a
// concurrent write.
func (s *IssueService) mutate(ctx context.Context, actor lifecycle.Actor, issueID int64, rule func(*domain.Issue) (lifecycle.Change, error)) (*domain.Issue, lifecycle.Change, error) {
	for attempt := 1; attempt <= s.cfg.MaxWriteRetries; attempt++ {
		issue, err := s.load(ctx, issueID)
		if err != nil {
			return nil, lifecycle.Change{}, err
		}
		change, err := rule(issue)
		if err != nil {
			return nil, change, err
		}
		if !change.Changed() {
			return issue, change, nil
		}

		err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
			if err := s.issues.Update(ctx, issue); err != nil {
				return err
			}
			return s.recordChange(ctx, actor, issue.ID, change)
		})
		switch {
		case err == nil:
			return issue, change, nil
		case errors.Is(err, repository.ErrVersionConflict):
			s.metrics.RecordWriteConflict()
			s.logger.Debug("issue write conflict",
				zap.Int64("issue_id", issueID),
				zap.Int("attempt", attempt))
		case errors.Is(err, repository.ErrNotFound):
			return nil, lifecycle.Change{}, apperrors.NewNotFound("issue", map[string]any{"issue_id": issueID})
		default:
			return nil, lifecycle.Change{}, apperrors.MapError(err)
		}
	}
	return nil, lifecycle.Change{}, apperrors.NewConflict("issue is being modified concurrently, retry", map[string]any{
		"issue_id": issueID,
		"attempts": s.cfg.MaxWriteRetries,
	})
}

// recordChange writes the history rows of change.
func (s *IssueService) recordChange(ctx context.Context, actor lifecycle.Actor, issueID int64, change lifecycle.Change) error {
	if change.Claim {
		return s.recordHistory(ctx, actor, issueID, domain.ChangeTypeClaim,
			map[string]any{"status": change.OldStatus, "assigned_to_id": change.OldAssignee},
			map[string]any{"status": change.NewStatus, "assigned_to_id": change.NewAssignee},
		)
	}
	if change.StatusChanged() {
		if err := s.recordHistory(ctx, actor, issueID, domain.ChangeTypeStatus,
			map[string]any{"status": change.OldStatus},
			map[string]any{"status": change.NewStatus},
		); err != nil {
			return err
		}
	}
	if change.AssigneeChanged() {
		if err := s.recordHistory(ctx, actor, issueID, domain.ChangeTypeAssignee,
			map[string]any{"assigned_to_id": change.OldAssignee},
			map[string]any{"assigned_to_id": change.NewAssignee},
		); err != nil {
			return err
		}
	}
	return nil
}

// publishChange emits the events of a committed change.
func (s *IssueService) publishChange(ctx context.Context, actor lifecycle.Actor, issueID int64, change lifecycle.Change) {
	if !change.Changed() {
		return
	}
	if change.Claim {
		s.publishEvent(ctx, events.Event{
			Type:    events.EventIssueClaimed,
			IssueID: issueID,
			Actor:   eventActor(actor),
			Payload: events.IssueAssignedPayload{OldAssigneeID: change.OldAssignee, NewAssigneeID: change.NewAssignee},
		})
		return
	}
	if change.StatusChanged() {
		eventType := events.EventIssueStatusChanged
		if change.NewStatus == domain.IssueStatusResolved {
			eventType = events.EventIssueResolved
		}
		s.publishEvent(ctx, events.Event{
			Type:    eventType,
			IssueID: issueID,
			Actor:   eventActor(actor),
			Payload: events.IssueStatusChangedPayload{OldStatus: change.OldStatus, NewStatus: change.NewStatus},
		})
	}
	if change.AssigneeChanged() {
		s.publishEvent(ctx, events.Event{
			Type:    events.EventIssueAssigned,
			IssueID: issueID,
			Actor:   eventActor(actor),
			Payload: events.IssueAssignedPayload{OldAssigneeID: change.OldAssignee, NewAssigneeID: change.NewAssignee},
		})
	}
}

func (s *IssueService) load(ctx context.Context, issueID int64) (*domain.Issue, error) {
	issue, err := s.issues.GetByID(ctx, issueID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("issue", map[string]any{"issue_id": issueID})
		}
		return nil, apperrors.MapError(err)
	}
	return issue, nil
}

// activeUser returns the user behind id, or nil when it does not exist or is inactive.
func (s *IssueService) activeUser(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, apperrors.MapError(err)
	}
	if !user.IsActive {
		return nil, nil
	}
	return user, nil
}

func (s *IssueService) list(ctx context.Context, filter repository.IssueFilter, page Page) (*IssueList, error) {
	filter.Limit, filter.Offset = s.clampPage(page)
	issues, err := s.issues.List(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	total, err := s.issues.Count(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &IssueList{Issues: issues, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

func (s *IssueService) clampPage(page Page) (int, int) {
	limit := page.Limit
	if limit <= 0 {
		limit = s.cfg.DefaultPageSize
	}
	if limit > s.cfg.MaxPageSize {
		limit = s.cfg.MaxPageSize
	}
	offset := page.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (s *IssueService) recordHistory(ctx context.Context, actor lifecycle.Actor, issueID int64, changeType domain.IssueChangeType, oldValue, newValue map[string]any) error {
	if s.history == nil {
		return nil
	}
	changedBy := actor.UserID
	return s.history.Create(ctx, &domain.IssueHistory{
		IssueID:     issueID,
		ChangedByID: &changedBy,
		ChangeType:  changeType,
		OldValue:    oldValue,
		NewValue:    newValue,
	})
}

func (s *IssueService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed",
			zap.String("event_type", string(event.Type)),
			zap.Int64("issue_id", event.IssueID),
			zap.Error(err))
	}
	s.metrics.RecordEvent(string(event.Type))
}

func eventActor(actor lifecycle.Actor) events.Actor {
	return events.Actor{UserID: actor.UserID, Role: actor.Role}
}

func participants(ctx context.Context, users repository.UserRepository, issues []domain.Issue) (map[int64]domain.User, error) {
	seen := map[int64]struct{}{}
	ids := []int64{}
	add := func(id *int64) {
		if id == nil {
			return
		}
		if _, ok := seen[*id]; ok {
			return
		}
		seen[*id] = struct{}{}
		ids = append(ids, *id)
	}
	for i := range issues {
		add(issues[i].RaisedByID)
		add(issues[i].AssigneeID)
	}

	out := make(map[int64]domain.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	found, err := users.ListByIDs(ctx, ids)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	for _, user := range found {
		out[user.ID] = user
	}
	return out, nil
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
