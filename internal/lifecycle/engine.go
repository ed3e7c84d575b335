// Package lifecycle enforces the role-gated issue state machine:
//
//	pending -> claimed -> in_progress -> resolved
//
// Managers and admins may set any status at any time. The engine performs no I/O; callers
// load an issue, apply a rule and persist the result atomically.
package lifecycle

import (
	"strings"
	"unicode/utf8"

	"github.com/issuedesk/issue-service/internal/catalog"
	"github.com/issuedesk/issue-service/internal/domain"
	apperrors "github.com/issuedesk/issue-service/pkg/util"
)

// MaxTitleLength bounds issue titles, in characters.
const MaxTitleLength = 200

// Field names reported in Change.Skipped.
const (
	FieldStatus   = "status"
	FieldAssignee = "assigned_to"
)

// Actor is the authenticated identity invoking an operation.
type Actor struct {
	UserID int64
	Role   domain.Role
}

// IssueFields is the payload for raising an issue.
type IssueFields struct {
	Title          string
	Description    string
	Category       string
	Subcategory    string
	Priority       string
	StoreName      *string
	Floor          *string
	AttachmentKey  *string
	AttachmentName *string
}

// UpdateRequest carries the optional fields of a status/assignment update. AssigneeID
// must already be resolved to an active user by the caller.
type UpdateRequest struct {
	Status     *string
	AssigneeID *int64
}

// Change describes the effect of a rule on an issue.
type Change struct {
	OldStatus   domain.IssueStatus
	NewStatus   domain.IssueStatus
	OldAssignee *int64
	NewAssignee *int64
	OldClaimed  bool
	NewClaimed  bool
	Claim       bool
	Skipped     []string
}

// StatusChanged reports whether the status moved.
func (c Change) StatusChanged() bool {
	return c.OldStatus != c.NewStatus
}

// AssigneeChanged reports whether the assignee moved.
func (c Change) AssigneeChanged() bool {
	return !sameID(c.OldAssignee, c.NewAssignee)
}

// Changed reports whether the issue needs to be persisted.
func (c Change) Changed() bool {
	return c.StatusChanged() || c.AssigneeChanged() || c.OldClaimed != c.NewClaimed
}

// Engine applies lifecycle rules using the injected catalog.
type Engine struct {
	catalog *catalog.Catalog
}

// NewEngine constructs an engine.
func NewEngine(c *catalog.Catalog) *Engine {
	return &Engine{catalog: c}
}

// Catalog exposes the registry the engine validates against.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// NewIssue validates fields and builds a pending issue raised by creator.
func (e *Engine) NewIssue(creator Actor, fields IssueFields) (*domain.Issue, error) {
	title := strings.TrimSpace(fields.Title)
	description := strings.TrimSpace(fields.Description)

	var missing []string
	if title == "" {
		missing = append(missing, "title")
	}
	if description == "" {
		missing = append(missing, "description")
	}
	if len(missing) > 0 {
		return nil, apperrors.NewValidationError("required fields missing", map[string]any{"fields": missing})
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return nil, apperrors.NewValidationError("title too long", map[string]any{"max_length": MaxTitleLength})
	}

	priority := e.catalog.DefaultPriority()
	if raw := strings.TrimSpace(fields.Priority); raw != "" {
		if !e.catalog.IsPriority(raw) {
			return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": raw})
		}
		priority = domain.IssuePriority(raw)
	}

	if err := e.catalog.ValidateCategory(fields.Category, fields.Subcategory); err != nil {
		return nil, err
	}

	raisedBy := creator.UserID
	return &domain.Issue{
		Title:          title,
		Description:    description,
		Category:       e.catalog.NormalizeCategory(fields.Category),
		Subcategory:    strings.TrimSpace(fields.Subcategory),
		Priority:       priority,
		Status:         domain.IssueStatusPending,
		Claimed:        false,
		RaisedByID:     &raisedBy,
		StoreName:      trimmedOrNil(fields.StoreName),
		Floor:          trimmedOrNil(fields.Floor),
		AttachmentKey:  trimmedOrNil(fields.AttachmentKey),
		AttachmentName: trimmedOrNil(fields.AttachmentName),
	}, nil
}

// Claim lets a hardware technician take ownership of a pending issue.
func (e *Engine) Claim(issue *domain.Issue, actor Actor) (Change, error) {
	change := snapshot(issue)
	if actor.Role != domain.RoleHardware {
		return change, apperrors.NewForbidden("only hardware technicians can claim issues")
	}
	if issue.Status != domain.IssueStatusPending {
		return change, apperrors.NewConflict("issue is not pending", map[string]any{
			"issue_id": issue.ID,
			"status":   issue.Status,
		})
	}

	assignee := actor.UserID
	issue.AssigneeID = &assignee
	issue.Status = domain.IssueStatusClaimed
	issue.Claimed = true

	change.Claim = true
	return finish(change, issue), nil
}

// Update applies a status and/or assignment change. Each field is validated on its own;
// an unknown status is skipped without blocking the assignment and vice versa.
func (e *Engine) Update(issue *domain.Issue, actor Actor, req UpdateRequest) (Change, error) {
	change := snapshot(issue)
	if !actor.Role.CanTriage() {
		return change, apperrors.NewForbidden("role cannot update issue status or assignment")
	}

	if req.Status != nil {
		raw := strings.TrimSpace(*req.Status)
		if e.catalog.IsStatus(raw) {
			issue.Status = domain.IssueStatus(raw)
			if issue.Status == domain.IssueStatusPending {
				issue.Claimed = false
			}
		} else {
			change.Skipped = append(change.Skipped, FieldStatus)
		}
	}

	if req.AssigneeID != nil {
		assignee := *req.AssigneeID
		issue.AssigneeID = &assignee
	}

	return finish(change, issue), nil
}

// Resolve marks an issue resolved. Managers and admins always may; a hardware technician
// only when the issue is assigned to them.
func (e *Engine) Resolve(issue *domain.Issue, actor Actor) (Change, error) {
	change := snapshot(issue)
	switch {
	case actor.Role.Privileged():
	case actor.Role == domain.RoleHardware && issue.IsAssignedTo(actor.UserID):
	default:
		return change, apperrors.NewForbidden("only managers, admins or the assigned technician can resolve")
	}

	issue.Status = domain.IssueStatusResolved
	return finish(change, issue), nil
}

// Scope restricts an issue listing. Zero-valued fields do not restrict.
type Scope struct {
	AssigneeID      *int64
	RaisedByID      *int64
	Statuses        []domain.IssueStatus
	ExcludeStatuses []domain.IssueStatus
}

// Visibility returns the dashboard scope for actor.
func (e *Engine) Visibility(actor Actor) (Scope, error) {
	id := actor.UserID
	switch actor.Role {
	case domain.RoleAdmin, domain.RoleManager:
		return Scope{}, nil
	case domain.RoleHardware:
		return Scope{
			AssigneeID: &id,
			Statuses: []domain.IssueStatus{
				domain.IssueStatusPending,
				domain.IssueStatusClaimed,
				domain.IssueStatusInProgress,
			},
		}, nil
	case domain.RoleUser:
		return Scope{
			RaisedByID:      &id,
			ExcludeStatuses: []domain.IssueStatus{domain.IssueStatusResolved},
		}, nil
	default:
		return Scope{}, apperrors.NewConfigurationError("account is not configured with a valid role", map[string]any{
			"role": string(actor.Role),
		})
	}
}

// CanView reports whether actor may read issue and its thread. Hardware technicians also
// see pending unassigned issues so they can claim them.
func (e *Engine) CanView(issue *domain.Issue, actor Actor) bool {
	if actor.Role.Privileged() {
		return true
	}
	if issue.IsRaisedBy(actor.UserID) || issue.IsAssignedTo(actor.UserID) {
		return true
	}
	return actor.Role == domain.RoleHardware && issue.Status == domain.IssueStatusPending && issue.AssigneeID == nil
}

// CanSeeQueue reports whether actor may browse pending unclaimed issues.
func (e *Engine) CanSeeQueue(actor Actor) bool {
	return actor.Role.CanTriage()
}

func snapshot(issue *domain.Issue) Change {
	return Change{
		OldStatus:   issue.Status,
		NewStatus:   issue.Status,
		OldAssignee: copyID(issue.AssigneeID),
		NewAssignee: copyID(issue.AssigneeID),
		OldClaimed:  issue.Claimed,
		NewClaimed:  issue.Claimed,
	}
}

func finish(change Change, issue *domain.Issue) Change {
	change.NewStatus = issue.Status
	change.NewAssignee = copyID(issue.AssigneeID)
	change.NewClaimed = issue.Claimed
	return change
}

func copyID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func sameID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func trimmedOrNil(val *string) *string {
	if val == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*val)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
