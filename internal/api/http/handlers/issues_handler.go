package handlers

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/issuedesk/issue-service/internal/api/dto"
	"github.com/issuedesk/issue-service/internal/catalog"
	"github.com/issuedesk/issue-service/internal/domain"
	"github.com/issuedesk/issue-service/internal/lifecycle"
	"github.com/issuedesk/issue-service/internal/service"
)

// IssuesHandler exposes the issue workflow.
type IssuesHandler struct {
	service *service.IssueService
	catalog *catalog.Catalog
}

// NewIssuesHandler constructs handler.
func NewIssuesHandler(issueService *service.IssueService, c *catalog.Catalog) *IssuesHandler {
	return &IssuesHandler{service: issueService, catalog: c}
}

// Dashboard GET /dashboard.
func (h *IssuesHandler) Dashboard(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	list, err := h.service.VisibleIssues(c.UserContext(), p.Actor(), parsePage(c))
	if err != nil {
		return err
	}
	return h.respondList(c, list)
}

// MyIssues GET /issues/mine.
func (h *IssuesHandler) MyIssues(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	list, err := h.service.MyIssues(c.UserContext(), p.Actor(), parsePage(c))
	if err != nil {
		return err
	}
	return h.respondList(c, list)
}

// Queue GET /issues/queue.
func (h *IssuesHandler) Queue(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	list, err := h.service.ClaimQueue(c.UserContext(), p.Actor(), parsePage(c))
	if err != nil {
		return err
	}
	return h.respondList(c, list)
}

// List GET /issues.
func (h *IssuesHandler) List(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	report, err := parseReportFilter(c, h.catalog)
	if err != nil {
		return err
	}
	filter := service.IssueListFilter{
		Statuses:    report.Statuses,
		Priorities:  report.Priorities,
		CreatedFrom: report.CreatedFrom,
		CreatedTo:   report.CreatedTo,
		Page:        parsePage(c),
	}
	switch assignee := c.Query("assigned_to"); assignee {
	case "":
	case "none":
		filter.Unassigned = true
	default:
		id := int64(parseInt(assignee, 0))
		if id > 0 {
			filter.AssigneeID = &id
		}
	}

	list, err := h.service.ListAll(c.UserContext(), p.Actor(), filter)
	if err != nil {
		return err
	}
	return h.respondList(c, list)
}

// Create POST /issues.
func (h *IssuesHandler) Create(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.CreateIssueRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	issue, err := h.service.CreateIssue(c.UserContext(), p.Actor(), lifecycle.IssueFields{
		Title:          req.Title,
		Description:    req.Description,
		Category:       req.Category,
		Subcategory:    req.Subcategory,
		Priority:       req.Priority,
		StoreName:      req.StoreName,
		Floor:          req.Floor,
		AttachmentKey:  req.AttachmentKey,
		AttachmentName: req.AttachmentName,
	})
	if err != nil {
		return err
	}
	summary, err := h.summary(c.UserContext(), issue)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": summary})
}

// Get GET /issues/:id.
func (h *IssuesHandler) Get(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	detail, err := h.service.GetIssue(c.UserContext(), p.Actor(), id)
	if err != nil {
		return err
	}
	summary, err := h.summary(c.UserContext(), detail.Issue)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.IssueDetailResponse{
		IssueSummary:   summary,
		Description:    detail.Issue.Description,
		AttachmentKey:  detail.Issue.AttachmentKey,
		AttachmentName: detail.Issue.AttachmentName,
		Comments:       commentResponses(detail.Comments),
		History:        historyResponses(detail.History),
	}})
}

// AddComment POST /issues/:id/comments.
func (h *IssuesHandler) AddComment(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req dto.CreateCommentRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	comment, err := h.service.AddComment(c.UserContext(), p.Actor(), id, req.Content)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": commentResponses([]domain.Comment{*comment})[0]})
}

// Claim POST /issues/:id/claim.
func (h *IssuesHandler) Claim(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	issue, err := h.service.Claim(c.UserContext(), p.Actor(), id)
	if err != nil {
		return err
	}
	return h.respondIssue(c, issue)
}

// Update POST /issues/:id/update.
func (h *IssuesHandler) Update(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req dto.UpdateIssueRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	result, err := h.service.UpdateStatusAndAssignment(c.UserContext(), p.Actor(), id, service.UpdateInput{
		Status:     req.Status,
		AssignedTo: req.AssignedTo,
	})
	if err != nil {
		return err
	}
	summary, err := h.summary(c.UserContext(), result.Issue)
	if err != nil {
		return err
	}
	skipped := result.Skipped
	if skipped == nil {
		skipped = []string{}
	}
	return c.JSON(fiber.Map{"data": dto.UpdateIssueResponse{Issue: summary, Skipped: skipped}})
}

// Resolve POST /issues/:id/resolve.
func (h *IssuesHandler) Resolve(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	issue, err := h.service.Resolve(c.UserContext(), p.Actor(), id)
	if err != nil {
		return err
	}
	return h.respondIssue(c, issue)
}

func (h *IssuesHandler) respondIssue(c *fiber.Ctx, issue *domain.Issue) error {
	summary, err := h.summary(c.UserContext(), issue)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": summary})
}

func (h *IssuesHandler) respondList(c *fiber.Ctx, list *service.IssueList) error {
	people, err := h.service.Participants(c.UserContext(), list.Issues)
	if err != nil {
		return err
	}
	items := make([]dto.IssueSummary, 0, len(list.Issues))
	for i := range list.Issues {
		items = append(items, issueSummary(h.catalog, people, &list.Issues[i]))
	}
	return c.JSON(fiber.Map{"data": dto.IssueListResponse{
		Items:  items,
		Total:  list.Total,
		Limit:  list.Limit,
		Offset: list.Offset,
	}})
}

func (h *IssuesHandler) summary(ctx context.Context, issue *domain.Issue) (dto.IssueSummary, error) {
	people, err := h.service.Participants(ctx, []domain.Issue{*issue})
	if err != nil {
		return dto.IssueSummary{}, err
	}
	return issueSummary(h.catalog, people, issue), nil
}
