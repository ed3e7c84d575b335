package repository

import (
	"fmt"
	"strings"
	"time"

	"github.com/issuedesk/issue-service/internal/domain"
)

// IssueFilter narrows issue listings. Zero-valued fields do not restrict.
type IssueFilter struct {
	RaisedByID      *int64
	AssigneeID      *int64
	Unassigned      bool
	Statuses        []domain.IssueStatus
	ExcludeStatuses []domain.IssueStatus
	Priorities      []domain.IssuePriority
	CreatedFrom     *time.Time
	CreatedTo       *time.Time
	// Limit <= 0 returns every matching row.
	Limit  int
	Offset int
}

// Placeholder renders the n-th (1-based) bind parameter of a statement.
type Placeholder func(n int) string

// DollarPlaceholder renders Postgres style parameters.
func DollarPlaceholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

// QuestionPlaceholder renders SQLite style parameters.
func QuestionPlaceholder(int) string {
	return "?"
}

// WhereClause renders the filter as a predicate over the issues table.
func (f IssueFilter) WhereClause(ph Placeholder) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}
	bind := func(v any) string {
		args = append(args, v)
		return ph(len(args))
	}

	if f.RaisedByID != nil {
		clauses = append(clauses, "raised_by_id="+bind(*f.RaisedByID))
	}
	if f.AssigneeID != nil {
		clauses = append(clauses, "assigned_to_id="+bind(*f.AssigneeID))
	}
	if f.Unassigned {
		clauses = append(clauses, "assigned_to_id IS NULL")
	}
	if len(f.Statuses) > 0 {
		placeholders := make([]string, len(f.Statuses))
		for i, status := range f.Statuses {
			placeholders[i] = bind(string(status))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(f.ExcludeStatuses) > 0 {
		placeholders := make([]string, len(f.ExcludeStatuses))
		for i, status := range f.ExcludeStatuses {
			placeholders[i] = bind(string(status))
		}
		clauses = append(clauses, fmt.Sprintf("status NOT IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(f.Priorities) > 0 {
		placeholders := make([]string, len(f.Priorities))
		for i, pr := range f.Priorities {
			placeholders[i] = bind(string(pr))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if f.CreatedFrom != nil {
		clauses = append(clauses, "created_at >= "+bind(f.CreatedFrom.UTC()))
	}
	if f.CreatedTo != nil {
		clauses = append(clauses, "created_at <= "+bind(f.CreatedTo.UTC()))
	}

	return strings.Join(clauses, " AND "), args
}

// PageClause renders ordering and pagination. Newest issues come first.
func (f IssueFilter) PageClause() string {
	clause := "ORDER BY created_at DESC, id DESC"
	if f.Limit > 0 {
		offset := f.Offset
		if offset < 0 {
			offset = 0
		}
		clause += fmt.Sprintf(" LIMIT %d OFFSET %d", f.Limit, offset)
	}
	return clause
}
