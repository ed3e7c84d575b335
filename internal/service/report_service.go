package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/issuedesk/issue-service/internal/catalog"
	"github.com/issuedesk/issue-service/internal/config"
	"github.com/issuedesk/issue-service/internal/domain"
	"github.com/issuedesk/issue-service/internal/export"
	"github.com/issuedesk/issue-service/internal/lifecycle"
	"github.com/issuedesk/issue-service/internal/persistence"
	"github.com/issuedesk/issue-service/internal/repository"
	apperrors "github.com/issuedesk/issue-service/pkg/util"
)

// UnassignedLabel groups issues without an assignee in role breakdowns.
const UnassignedLabel = "Unassigned"

const dateLayout = "2006-01-02"

// ReportFilter narrows reports and exports.
type ReportFilter struct {
	Statuses    []domain.IssueStatus
	Priorities  []domain.IssuePriority
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// RawReportFilter carries unparsed filter values as they arrive from a query string
// or command line. Statuses and priorities are comma separated; dates are RFC 3339 or
// YYYY-MM-DD.
type RawReportFilter struct {
	Status   string
	Priority string
	DateFrom string
	DateTo   string
}

// ParseReportFilter validates raw against the catalog. A bare DateTo covers the whole day.
func ParseReportFilter(cat *catalog.Catalog, raw RawReportFilter) (ReportFilter, error) {
	var (
		filter ReportFilter
		err    error
	)
	for _, part := range splitList(raw.Status) {
		if !cat.IsStatus(part) {
			return filter, apperrors.NewValidationError("invalid status", map[string]any{"status": part})
		}
		filter.Statuses = append(filter.Statuses, domain.IssueStatus(part))
	}
	for _, part := range splitList(raw.Priority) {
		if !cat.IsPriority(part) {
			return filter, apperrors.NewValidationError("invalid priority", map[string]any{"priority": part})
		}
		filter.Priorities = append(filter.Priorities, domain.IssuePriority(part))
	}
	if filter.CreatedFrom, err = parseDate("date_from", raw.DateFrom, false); err != nil {
		return filter, err
	}
	if filter.CreatedTo, err = parseDate("date_to", raw.DateTo, true); err != nil {
		return filter, err
	}
	return filter, nil
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseDate(name, val string, endOfDay bool) (*time.Time, error) {
	if val == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, val); err == nil {
		return &t, nil
	}
	t, err := time.Parse(dateLayout, val)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid "+name, map[string]any{name: val})
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func (f ReportFilter) issueFilter() repository.IssueFilter {
	return repository.IssueFilter{
		Statuses:    f.Statuses,
		Priorities:  f.Priorities,
		CreatedFrom: f.CreatedFrom,
		CreatedTo:   f.CreatedTo,
	}
}

// cacheKey renders the filter canonically.
func (f ReportFilter) cacheKey() string {
	parts := make([]string, 0, 4)
	statuses := make([]string, len(f.Statuses))
	for i, s := range f.Statuses {
		statuses[i] = string(s)
	}
	priorities := make([]string, len(f.Priorities))
	for i, p := range f.Priorities {
		priorities[i] = string(p)
	}
	parts = append(parts, "s="+strings.Join(statuses, ","), "p="+strings.Join(priorities, ","))
	parts = append(parts, "from="+formatDate(f.CreatedFrom), "to="+formatDate(f.CreatedTo))
	return strings.Join(parts, ";")
}

func (f ReportFilter) display() []export.Filter {
	var out []export.Filter
	for _, s := range f.Statuses {
		out = append(out, export.Filter{Name: "Status", Value: string(s)})
	}
	for _, p := range f.Priorities {
		out = append(out, export.Filter{Name: "Priority", Value: string(p)})
	}
	if f.CreatedFrom != nil {
		out = append(out, export.Filter{Name: "Date From", Value: formatDate(f.CreatedFrom)})
	}
	if f.CreatedTo != nil {
		out = append(out, export.Filter{Name: "Date To", Value: formatDate(f.CreatedTo)})
	}
	return out
}

// Summary aggregates issue counts for the reports view.
type Summary struct {
	Total          int                          `json:"total"`
	Open           int                          `json:"open"`
	Resolved       int                          `json:"resolved"`
	HighPriority   int                          `json:"high_priority"`
	ByStatus       map[domain.IssueStatus]int   `json:"by_status"`
	ByPriority     map[domain.IssuePriority]int `json:"by_priority"`
	ByAssigneeRole map[string]int               `json:"by_assignee_role"`
	GeneratedAt    time.Time                    `json:"generated_at"`
}

// ReportService computes summaries and renders exports for managers and admins.
type ReportService struct {
	issues   repository.IssueRepository
	users    repository.UserRepository
	profiles *ProfileService
	catalog  *catalog.Catalog
	cache    *reportCache
	cfg      config.ReportsConfig
	logger   *zap.Logger
	now      func() time.Time
}

// ReportDependencies bundles collaborators for the report service.
type ReportDependencies struct {
	IssueRepo      repository.IssueRepository
	UserRepo       repository.UserRepository
	ProfileService *ProfileService
	Catalog        *catalog.Catalog
	Redis          *persistence.Redis
	Logger         *zap.Logger
}

// NewReportService constructs the service. A nil Redis disables caching.
func NewReportService(cfg config.ReportsConfig, deps ReportDependencies) *ReportService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		issues:   deps.IssueRepo,
		users:    deps.UserRepo,
		profiles: deps.ProfileService,
		catalog:  deps.Catalog,
		cache:    newReportCache(deps.Redis, cfg.CacheTTL(), logger),
		cfg:      cfg,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Summary returns aggregate counts for issues matching filter.
func (s *ReportService) Summary(ctx context.Context, actor lifecycle.Actor, filter ReportFilter) (*Summary, error) {
	if !actor.Role.Privileged() {
		return nil, apperrors.NewForbidden("only managers and admins can view reports")
	}
	return s.cache.summary(ctx, filter.cacheKey(), func(ctx context.Context) (*Summary, error) {
		return s.computeSummary(ctx, filter)
	})
}

// Export renders issues matching filter in format.
func (s *ReportService) Export(ctx context.Context, actor lifecycle.Actor, rawFormat string, filter ReportFilter) (*export.Document, error) {
	if !actor.Role.Privileged() {
		return nil, apperrors.NewForbidden("only managers and admins can export reports")
	}
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return nil, err
	}

	issues, err := s.issues.List(ctx, filter.issueFilter())
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	people, err := participants(ctx, s.users, issues)
	if err != nil {
		return nil, err
	}

	report := &export.Report{
		GeneratedAt: s.now(),
		Filters:     filter.display(),
		Rows:        make([]export.Row, len(issues)),
	}
	statusCounts := map[domain.IssueStatus]int{}
	priorityCounts := map[domain.IssuePriority]int{}
	for i, issue := range issues {
		statusCounts[issue.Status]++
		priorityCounts[issue.Priority]++
		report.Rows[i] = export.Row{
			ID:          issue.ID,
			Title:       issue.Title,
			Description: issue.Description,
			Status:      s.catalog.StatusLabel(issue.Status),
			Priority:    s.catalog.PriorityLabel(issue.Priority),
			Category:    issue.Category,
			Subcategory: issue.Subcategory,
			AssignedTo:  personName(people, issue.AssigneeID, UnassignedLabel),
			Reporter:    personName(people, issue.RaisedByID, "System"),
			StoreName:   deref(issue.StoreName),
			Floor:       deref(issue.Floor),
			CreatedAt:   issue.CreatedAt,
			UpdatedAt:   issue.UpdatedAt,
		}
	}
	for _, status := range domain.IssueStatuses {
		if n := statusCounts[status]; n > 0 {
			report.ByStatus = append(report.ByStatus, export.Count{Label: s.catalog.StatusLabel(status), Count: n})
		}
	}
	for _, priority := range domain.IssuePriorities {
		if n := priorityCounts[priority]; n > 0 {
			report.ByPriority = append(report.ByPriority, export.Count{Label: s.catalog.PriorityLabel(priority), Count: n})
		}
	}

	doc, err := export.Render(format, report, export.Options{PDFRowLimit: s.cfg.PDFRowLimit})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("report exported",
		zap.Int64("actor_id", actor.UserID),
		zap.String("format", string(format)),
		zap.Int("rows", len(issues)))
	return doc, nil
}

// InvalidateCache discards every cached summary.
func (s *ReportService) InvalidateCache(ctx context.Context) error {
	return s.cache.invalidate(ctx)
}

func (s *ReportService) computeSummary(ctx context.Context, filter ReportFilter) (*Summary, error) {
	issues, err := s.issues.List(ctx, filter.issueFilter())
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	summary := &Summary{
		Total:          len(issues),
		ByStatus:       make(map[domain.IssueStatus]int, len(domain.IssueStatuses)),
		ByPriority:     make(map[domain.IssuePriority]int, len(domain.IssuePriorities)),
		ByAssigneeRole: map[string]int{},
		GeneratedAt:    s.now(),
	}
	for _, status := range domain.IssueStatuses {
		summary.ByStatus[status] = 0
	}
	for _, priority := range domain.IssuePriorities {
		summary.ByPriority[priority] = 0
	}

	var assignees []int64
	for _, issue := range issues {
		if issue.AssigneeID != nil {
			assignees = append(assignees, *issue.AssigneeID)
		}
	}
	roles, err := s.profiles.Roles(ctx, assignees)
	if err != nil {
		return nil, err
	}

	for _, issue := range issues {
		summary.ByStatus[issue.Status]++
		summary.ByPriority[issue.Priority]++
		if issue.Status == domain.IssueStatusResolved {
			summary.Resolved++
		} else {
			summary.Open++
		}
		if issue.Priority == domain.IssuePriorityHigh {
			summary.HighPriority++
		}

		bucket := UnassignedLabel
		if issue.AssigneeID != nil {
			role, ok := roles[*issue.AssigneeID]
			if !ok {
				role = domain.RoleUser
			}
			bucket = string(role)
		}
		summary.ByAssigneeRole[bucket]++
	}
	return summary, nil
}

func personName(people map[int64]domain.User, id *int64, fallback string) string {
	if id == nil {
		return fallback
	}
	user, ok := people[*id]
	if !ok {
		return fallback
	}
	return user.DisplayName()
}

func deref(val *string) string {
	if val == nil {
		return ""
	}
	return *val
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(dateLayout)
}
