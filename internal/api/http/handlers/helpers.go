package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/issuedesk/issue-service/internal/api/dto"
	"github.com/issuedesk/issue-service/internal/auth"
	"github.com/issuedesk/issue-service/internal/catalog"
	"github.com/issuedesk/issue-service/internal/domain"
	"github.com/issuedesk/issue-service/internal/service"
	apperrors "github.com/issuedesk/issue-service/pkg/util"
)

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return nil
}

func parseID(c *fiber.Ctx, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid "+name, map[string]any{name: c.Params(name)})
	}
	return id, nil
}

// parsePage reads page/page_size, falling back to limit/offset.
func parsePage(c *fiber.Ctx) service.Page {
	if c.Query("page") != "" || c.Query("page_size") != "" {
		page := parseInt(c.Query("page"), 1)
		size := parseInt(c.Query("page_size"), 20)
		return service.Page{Limit: size, Offset: (page - 1) * size}
	}
	return service.Page{Limit: parseInt(c.Query("limit"), 0), Offset: parseInt(c.Query("offset"), 0)}
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func parseReportFilter(c *fiber.Ctx, cat *catalog.Catalog) (service.ReportFilter, error) {
	return service.ParseReportFilter(cat, service.RawReportFilter{
		Status:   c.Query("status"),
		Priority: c.Query("priority"),
		DateFrom: c.Query("date_from"),
		DateTo:   c.Query("date_to"),
	})
}

func principal(c *fiber.Ctx) (*auth.Principal, error) {
	return auth.MustPrincipal(c)
}

func userResponse(cat *catalog.Catalog, user *domain.User, role domain.Role) dto.UserResponse {
	return dto.UserResponse{
		ID:          user.ID,
		Username:    user.Username,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		Email:       user.Email,
		DisplayName: user.DisplayName(),
		Role:        role,
		RoleLabel:   cat.RoleLabel(role),
		IsActive:    user.IsActive,
	}
}

func userRef(people map[int64]domain.User, id *int64) *dto.UserRef {
	if id == nil {
		return nil
	}
	ref := &dto.UserRef{ID: *id}
	if user, ok := people[*id]; ok {
		ref.Username = user.Username
		ref.DisplayName = user.DisplayName()
	}
	return ref
}

func issueSummary(cat *catalog.Catalog, people map[int64]domain.User, issue *domain.Issue) dto.IssueSummary {
	return dto.IssueSummary{
		ID:          issue.ID,
		Title:       issue.Title,
		Category:    issue.Category,
		Subcategory: issue.Subcategory,
		Priority:    issue.Priority,
		Status:      issue.Status,
		StatusLabel: cat.StatusLabel(issue.Status),
		Claimed:     issue.Claimed,
		RaisedBy:    userRef(people, issue.RaisedByID),
		AssignedTo:  userRef(people, issue.AssigneeID),
		StoreName:   issue.StoreName,
		Floor:       issue.Floor,
		Version:     issue.Version,
		CreatedAt:   issue.CreatedAt,
		UpdatedAt:   issue.UpdatedAt,
	}
}

func commentResponses(comments []domain.Comment) []dto.CommentResponse {
	resp := make([]dto.CommentResponse, 0, len(comments))
	for _, comment := range comments {
		resp = append(resp, dto.CommentResponse{
			ID:        comment.ID,
			AuthorID:  comment.AuthorID,
			Content:   comment.Content,
			CreatedAt: comment.CreatedAt,
		})
	}
	return resp
}

func historyResponses(entries []domain.IssueHistory) []dto.HistoryResponse {
	resp := make([]dto.HistoryResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, dto.HistoryResponse{
			ID:          entry.ID,
			ChangeType:  entry.ChangeType,
			ChangedByID: entry.ChangedByID,
			OldValue:    entry.OldValue,
			NewValue:    entry.NewValue,
			CreatedAt:   entry.CreatedAt,
		})
	}
	return resp
}
