package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/issuedesk/issue-service/internal/domain"
	"github.com/issuedesk/issue-service/internal/repository"
)

var _ repository.CommentRepository = (*commentRepository)(nil)

type commentRepository struct {
	db *sql.DB
}

func (r *commentRepository) Create(ctx context.Context, comment *domain.Comment) error {
	ts := now()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO comments (issue_id, author_id, content, created_at) VALUES (?, ?, ?, ?)`,
		comment.IssueID,
		comment.AuthorID,
		comment.Content,
		ts,
	)
	if err != nil {
		return mapError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: comment id: %w", err)
	}
	comment.ID = id
	comment.CreatedAt = ts
	return nil
}

func (r *commentRepository) ListByIssue(ctx context.Context, issueID int64) ([]domain.Comment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, issue_id, author_id, content, created_at
		 FROM comments WHERE issue_id = ? ORDER BY created_at ASC, id ASC`, issueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Comment
	for rows.Next() {
		var comment domain.Comment
		if err := rows.Scan(
			&comment.ID,
			&comment.IssueID,
			&comment.AuthorID,
			&comment.Content,
			&comment.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, comment)
	}
	return result, rows.Err()
}
