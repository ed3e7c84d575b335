package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/issuedesk/issue-service/internal/domain"
	"github.com/issuedesk/issue-service/internal/repository"
)

var _ repository.IssueRepository = (*issueRepository)(nil)

const issueColumns = `id, title, description, category, subcategory, priority, status, claimed,
	raised_by_id, assigned_to_id, store_name, floor, attachment_key, attachment_name,
	version, created_at, updated_at`

type issueRepository struct {
	db *sql.DB
}

func (r *issueRepository) Create(ctx context.Context, issue *domain.Issue) error {
	ts := now()
	res, err := conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO issues (title, description, category, subcategory, priority, status, claimed,
			raised_by_id, assigned_to_id, store_name, floor, attachment_key, attachment_name,
			version, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		issue.Title,
		issue.Description,
		issue.Category,
		issue.Subcategory,
		string(issue.Priority),
		string(issue.Status),
		issue.Claimed,
		issue.RaisedByID,
		issue.AssigneeID,
		issue.StoreName,
		issue.Floor,
		issue.AttachmentKey,
		issue.AttachmentName,
		ts,
		ts,
	)
	if err != nil {
		return mapError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: issue id: %w", err)
	}
	issue.ID = id
	issue.Version = 1
	issue.CreatedAt = ts
	issue.UpdatedAt = ts
	return nil
}

func (r *issueRepository) Update(ctx context.Context, issue *domain.Issue) error {
	ts := now()
	res, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE issues SET title = ?, description = ?, category = ?, subcategory = ?, priority = ?,
			status = ?, claimed = ?, assigned_to_id = ?, store_name = ?, floor = ?,
			version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ?`,
		issue.Title,
		issue.Description,
		issue.Category,
		issue.Subcategory,
		string(issue.Priority),
		string(issue.Status),
		issue.Claimed,
		issue.AssigneeID,
		issue.StoreName,
		issue.Floor,
		ts,
		issue.ID,
		issue.Version,
	)
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		issue.Version++
		issue.UpdatedAt = ts
		return nil
	}

	var exists int
	if err := conn(ctx, r.db).QueryRowContext(ctx, `SELECT COUNT(*) FROM issues WHERE id = ?`, issue.ID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return repository.ErrNotFound
	}
	return repository.ErrVersionConflict
}

func (r *issueRepository) GetByID(ctx context.Context, id int64) (*domain.Issue, error) {
	issue, err := scanIssue(conn(ctx, r.db).QueryRowContext(ctx, `SELECT `+issueColumns+` FROM issues WHERE id = ?`, id))
	if err != nil {
		return nil, mapError(err)
	}
	return issue, nil
}

func (r *issueRepository) List(ctx context.Context, filter repository.IssueFilter) ([]domain.Issue, error) {
	where, args := filter.WhereClause(repository.QuestionPlaceholder)
	query := fmt.Sprintf(`SELECT %s FROM issues WHERE %s %s`, issueColumns, where, filter.PageClause())

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Issue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *issue)
	}
	return result, rows.Err()
}

func (r *issueRepository) Count(ctx context.Context, filter repository.IssueFilter) (int, error) {
	where, args := filter.WhereClause(repository.QuestionPlaceholder)
	var count int
	err := conn(ctx, r.db).QueryRowContext(ctx, `SELECT COUNT(*) FROM issues WHERE `+where, args...).Scan(&count)
	return count, err
}

func scanIssue(row scanner) (*domain.Issue, error) {
	var issue domain.Issue
	if err := row.Scan(
		&issue.ID,
		&issue.Title,
		&issue.Description,
		&issue.Category,
		&issue.Subcategory,
		&issue.Priority,
		&issue.Status,
		&issue.Claimed,
		&issue.RaisedByID,
		&issue.AssigneeID,
		&issue.StoreName,
		&issue.Floor,
		&issue.AttachmentKey,
		&issue.AttachmentName,
		&issue.Version,
		&issue.CreatedAt,
		&issue.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &issue, nil
}
