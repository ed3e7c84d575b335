package domain

import "time"

// IssueChangeType captures what changed in a history entry.
type IssueChangeType string

const (
	ChangeTypeCreated  IssueChangeType = "CREATED"
	ChangeTypeStatus   IssueChangeType = "STATUS_CHANGE"
	ChangeTypeAssignee IssueChangeType = "ASSIGNEE_CHANGE"
	ChangeTypeClaim    IssueChangeType = "CLAIM"
)

// IssueHistory is an immutable audit trail entry.
type IssueHistory struct {
	ID          int64
	IssueID     int64
	ChangedByID *int64
	ChangeType  IssueChangeType
	OldValue    map[string]any
	NewValue    map[string]any
	CreatedAt   time.Time
}
