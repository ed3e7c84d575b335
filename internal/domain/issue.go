package domain

import "time"

// IssueStatus enumerates lifecycle states for issues.
type IssueStatus string

const (
	IssueStatusPending    IssueStatus = "pending"
	IssueStatusClaimed    IssueStatus = "claimed"
	IssueStatusInProgress IssueStatus = "in_progress"
	IssueStatusResolved   IssueStatus = "resolved"
)

// IssueStatuses lists every state of the lifecycle in path order.
var IssueStatuses = []IssueStatus{
	IssueStatusPending,
	IssueStatusClaimed,
	IssueStatusInProgress,
	IssueStatusResolved,
}

// Valid reports whether s is one of the lifecycle states.
func (s IssueStatus) Valid() bool {
	for _, candidate := range IssueStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IssuePriority enumerates urgency.
type IssuePriority string

const (
	IssuePriorityLow    IssuePriority = "low"
	IssuePriorityMedium IssuePriority = "medium"
	IssuePriorityHigh   IssuePriority = "high"
)

// IssuePriorities lists priorities from least to most urgent.
var IssuePriorities = []IssuePriority{
	IssuePriorityLow,
	IssuePriorityMedium,
	IssuePriorityHigh,
}

// Valid reports whether p is a known priority.
func (p IssuePriority) Valid() bool {
	for _, candidate := range IssuePriorities {
		if candidate == p {
			return true
		}
	}
	return false
}

// Issue is the aggregate for problems raised by employees.
//
// Claimed implies Status != pending and AssigneeID != nil.
type Issue struct {
	ID             int64
	Title          string
	Description    string
	Category       string
	Subcategory    string
	Priority       IssuePriority
	Status         IssueStatus
	Claimed        bool
	RaisedByID     *int64
	AssigneeID     *int64
	StoreName      *string
	Floor          *string
	AttachmentKey  *string
	AttachmentName *string
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsAssignedTo reports whether userID is the current assignee.
func (i *Issue) IsAssignedTo(userID int64) bool {
	return i.AssigneeID != nil && *i.AssigneeID == userID
}

// IsRaisedBy reports whether userID raised the issue.
func (i *Issue) IsRaisedBy(userID int64) bool {
	return i.RaisedByID != nil && *i.RaisedByID == userID
}
