package domain

import "time"

// Comment captures a note in an issue thread. Comments are append-only.
type Comment struct {
	ID        int64
	IssueID   int64
	AuthorID  *int64
	Content   string
	CreatedAt time.Time
}
