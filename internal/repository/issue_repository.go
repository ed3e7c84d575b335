package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/issuedesk/issue-service/internal/domain"
)

// IssueRepository encapsulates issue persistence.
type IssueRepository interface {
	Create(ctx context.Context, issue *domain.Issue) error
	// Update persists issue only if its stored version still equals issue.Version. On
	// success the version is incremented in place; otherwise ErrVersionConflict.
	Update(ctx context.Context, issue *domain.Issue) error
	GetByID(ctx context.Context, id int64) (*domain.Issue, error)
	List(ctx context.Context, filter IssueFilter) ([]domain.Issue, error)
	Count(ctx context.Context, filter IssueFilter) (int, error)
}

const issueColumns = `id, title, description, category, subcategory, priority, status, claimed,
               raised_by_id, assigned_to_id, store_name, floor, attachment_key, attachment_name,
               version, created_at, updated_at`

type issueRepository struct {
	pool *pgxpool.Pool
}

// NewIssueRepository instantiates repository.
func NewIssueRepository(pool *pgxpool.Pool) IssueRepository {
	return &issueRepository{pool: pool}
}

func (r *issueRepository) Create(ctx context.Context, issue *domain.Issue) error {
	const query = `
        INSERT INTO issues (title, description, category, subcategory, priority, status, claimed,
            raised_by_id, assigned_to_id, store_name, floor, attachment_key, attachment_name)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
        RETURNING id, version, created_at, updated_at`
	err := conn(ctx, r.pool).QueryRow(ctx, query,
		issue.Title,
		issue.Description,
		issue.Category,
		issue.Subcategory,
		issue.Priority,
		issue.Status,
		issue.Claimed,
		issue.RaisedByID,
		issue.AssigneeID,
		issue.StoreName,
		issue.Floor,
		issue.AttachmentKey,
		issue.AttachmentName,
	).Scan(&issue.ID, &issue.Version, &issue.CreatedAt, &issue.UpdatedAt)
	return mapPgError(err)
}

func (r *issueRepository) Update(ctx context.Context, issue *domain.Issue) error {
	const query = `
        UPDATE issues SET title=$1, description=$2, category=$3, subcategory=$4, priority=$5,
            status=$6, claimed=$7, assigned_to_id=$8, store_name=$9, floor=$10,
            version=version+1, updated_at=NOW()
        WHERE id=$11 AND version=$12
        RETURNING version, updated_at`
	err := conn(ctx, r.pool).QueryRow(ctx, query,
		issue.Title,
		issue.Description,
		issue.Category,
		issue.Subcategory,
		issue.Priority,
		issue.Status,
		issue.Claimed,
		issue.AssigneeID,
		issue.StoreName,
		issue.Floor,
		issue.ID,
		issue.Version,
	).Scan(&issue.Version, &issue.UpdatedAt)
	if err == nil {
		return nil
	}
	if err != pgx.ErrNoRows {
		return err
	}

	var exists bool
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM issues WHERE id=$1)`, issue.ID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrVersionConflict
}

func (r *issueRepository) GetByID(ctx context.Context, id int64) (*domain.Issue, error) {
	query := `SELECT ` + issueColumns + ` FROM issues WHERE id=$1`
	issue, err := scanIssue(conn(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapPgError(err)
	}
	return issue, nil
}

func (r *issueRepository) List(ctx context.Context, filter IssueFilter) ([]domain.Issue, error) {
	where, args := filter.WhereClause(DollarPlaceholder)
	query := fmt.Sprintf(`SELECT %s FROM issues WHERE %s %s`, issueColumns, where, filter.PageClause())

	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
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

func (r *issueRepository) Count(ctx context.Context, filter IssueFilter) (int, error) {
	where, args := filter.WhereClause(DollarPlaceholder)
	var count int
	err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM issues WHERE `+where, args...).Scan(&count)
	return count, err
}

func scanIssue(row pgx.Row) (*domain.Issue, error) {
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
