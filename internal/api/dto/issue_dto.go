package dto

import (
	"time"

	"github.com/issuedesk/issue-service/internal/domain"
)

// CreateIssueRequest payload.
type CreateIssueRequest struct {
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	Category       string  `json:"category"`
	Subcategory    string  `json:"subcategory"`
	Priority       string  `json:"priority"`
	StoreName      *string `json:"store_name"`
	Floor          *string `json:"floor"`
	AttachmentKey  *string `json:"attachment_key"`
	AttachmentName *string `json:"attachment_name"`
}

// UpdateIssueRequest payload. Both fields are optional.
type UpdateIssueRequest struct {
	Status     *string `json:"status"`
	AssignedTo *int64  `json:"assigned_to"`
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Content string `json:"content"`
}

// UserRef identifies a user inside issue responses.
type UserRef struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

// IssueSummary response.
type IssueSummary struct {
	ID          int64                `json:"id"`
	Title       string               `json:"title"`
	Category    string               `json:"category"`
	Subcategory string               `json:"subcategory"`
	Priority    domain.IssuePriority `json:"priority"`
	Status      domain.IssueStatus   `json:"status"`
	StatusLabel string               `json:"status_label"`
	Claimed     bool                 `json:"claimed"`
	RaisedBy    *UserRef             `json:"raised_by"`
	AssignedTo  *UserRef             `json:"assigned_to"`
	StoreName   *string              `json:"store_name"`
	Floor       *string              `json:"floor"`
	Version     int64                `json:"version"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

// IssueListResponse is one page of issues.
type IssueListResponse struct {
	Items  []IssueSummary `json:"items"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// IssueDetailResponse provides full issue info.
type IssueDetailResponse struct {
	IssueSummary
	Description    string            `json:"description"`
	AttachmentKey  *string           `json:"attachment_key"`
	AttachmentName *string           `json:"attachment_name"`
	Comments       []CommentResponse `json:"comments"`
	History        []HistoryResponse `json:"history"`
}

// UpdateIssueResponse reports the updated issue and any ignored fields.
type UpdateIssueResponse struct {
	Issue   IssueSummary `json:"issue"`
	Skipped []string     `json:"skipped"`
}

// CommentResponse represents a thread comment.
type CommentResponse struct {
	ID        int64     `json:"id"`
	AuthorID  *int64    `json:"author_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryResponse is one audit entry.
type HistoryResponse struct {
	ID          int64                  `json:"id"`
	ChangeType  domain.IssueChangeType `json:"change_type"`
	ChangedByID *int64                 `json:"changed_by_id"`
	OldValue    map[string]any         `json:"old_value"`
	NewValue    map[string]any         `json:"new_value"`
	CreatedAt   time.Time              `json:"created_at"`
}
