package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/issuedesk/issue-service/internal/domain"
	"github.com/issuedesk/issue-service/internal/repository"
)

var _ repository.HistoryRepository = (*historyRepository)(nil)

type historyRepository struct {
	db *sql.DB
}

func (r *historyRepository) Create(ctx context.Context, history *domain.IssueHistory) error {
	oldValue, err := encodeValue(history.OldValue)
	if err != nil {
		return err
	}
	newValue, err := encodeValue(history.NewValue)
	if err != nil {
		return err
	}

	ts := now()
	res, err := conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO issue_history (issue_id, changed_by_id, change_type, old_value, new_value, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		history.IssueID,
		history.ChangedByID,
		string(history.ChangeType),
		oldValue,
		newValue,
		ts,
	)
	if err != nil {
		return mapError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: history id: %w", err)
	}
	history.ID = id
	history.CreatedAt = ts
	return nil
}

func (r *historyRepository) ListByIssue(ctx context.Context, issueID int64) ([]domain.IssueHistory, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx,
		`SELECT id, issue_id, changed_by_id, change_type, old_value, new_value, created_at
		 FROM issue_history WHERE issue_id = ? ORDER BY created_at ASC, id ASC`, issueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.IssueHistory
	for rows.Next() {
		var (
			history  domain.IssueHistory
			oldValue sql.NullString
			newValue sql.NullString
		)
		if err := rows.Scan(
			&history.ID,
			&history.IssueID,
			&history.ChangedByID,
			&history.ChangeType,
			&oldValue,
			&newValue,
			&history.CreatedAt,
		); err != nil {
			return nil, err
		}
		if history.OldValue, err = decodeValue(oldValue); err != nil {
			return nil, err
		}
		if history.NewValue, err = decodeValue(newValue); err != nil {
			return nil, err
		}
		result = append(result, history)
	}
	return result, rows.Err()
}

func encodeValue(value map[string]any) (*string, error) {
	if value == nil {
		return nil, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("sqlite: encode history value: %w", err)
	}
	encoded := string(raw)
	return &encoded, nil
}

func decodeValue(raw sql.NullString) (map[string]any, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var value map[string]any
	if err := json.Unmarshal([]byte(raw.String), &value); err != nil {
		return nil, fmt.Errorf("sqlite: decode history value: %w", err)
	}
	return value, nil
}
