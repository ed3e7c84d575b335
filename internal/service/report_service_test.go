package service

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/issuedesk/issue-service/internal/catalog"
	"github.com/issuedesk/issue-service/internal/config"
	"github.com/issuedesk/issue-service/internal/domain"
	"github.com/issuedesk/issue-service/internal/events"
	"github.com/issuedesk/issue-service/internal/lifecycle"
	apperrors "github.com/issuedesk/issue-service/pkg/util"
)

func seedReportData(t *testing.T, f *fixture) (admin, tech lifecycle.Actor) {
	t.Helper()
	ctx := context.Background()
	employee := f.account(t, "emp", domain.RoleUser)
	tech = f.account(t, "tech", domain.RoleHardware)
	admin = f.account(t, "root", domain.RoleAdmin)

	first := f.raise(t, employee, "first")
	second, err := f.issues.CreateIssue(ctx, employee, lifecycle.IssueFields{Title: "second", Description: "d", Priority: "high"})
	require.NoError(t, err)
	f.raise(t, employee, "third")

	_, err = f.issues.Claim(ctx, tech, first.ID)
	require.NoError(t, err)
	_, err = f.issues.UpdateStatusAndAssignment(ctx, admin, second.ID, UpdateInput{
		Status:     ptr("resolved"),
		AssignedTo: ptr(admin.UserID),
	})
	require.NoError(t, err)
	return admin, tech
}

func TestReportSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin, tech := seedReportData(t, f)

	_, err := f.reports.Summary(ctx, tech, ReportFilter{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	summary, err := f.reports.Summary(ctx, admin, ReportFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Open)
	assert.Equal(t, 1, summary.Resolved)
	assert.Equal(t, 1, summary.HighPriority)
	assert.Equal(t, 1, summary.ByStatus[domain.IssueStatusPending])
	assert.Equal(t, 1, summary.ByStatus[domain.IssueStatusClaimed])
	assert.Equal(t, 0, summary.ByStatus[domain.IssueStatusInProgress])
	assert.Equal(t, 2, summary.ByPriority[domain.IssuePriorityMedium])
	assert.Equal(t, map[string]int{
		UnassignedLabel: 1,
		"hardware":      1,
		"admin":         1,
	}, summary.ByAssigneeRole)

	filtered, err := f.reports.Summary(ctx, admin, ReportFilter{Priorities: []domain.IssuePriority{domain.IssuePriorityHigh}})
	require.NoError(t, err)
	assert.Equal(t, 1, filtered.Total)
	assert.Equal(t, 1, filtered.Resolved)

	future := time.Now().Add(24 * time.Hour)
	empty, err := f.reports.Summary(ctx, admin, ReportFilter{CreatedFrom: &future})
	require.NoError(t, err)
	assert.Zero(t, empty.Total)
}

func TestReportExport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin, tech := seedReportData(t, f)
	f.reports.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }

	_, err := f.reports.Export(ctx, tech, "csv", ReportFilter{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	_, err = f.reports.Export(ctx, admin, "docx", ReportFilter{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	doc, err := f.reports.Export(ctx, admin, "CSV", ReportFilter{Statuses: []domain.IssueStatus{domain.IssueStatusClaimed}})
	require.NoError(t, err)
	assert.Equal(t, "issues_report_20240601_120000.csv", doc.Filename)
	body := string(doc.Body)
	assert.Contains(t, body, "# Total Records: 1\n")
	assert.Contains(t, body, "# - Status: claimed\n")
	assert.Contains(t, body, ",Claimed,Medium,")
	assert.Contains(t, body, ",tech,emp,")
	assert.True(t, strings.HasSuffix(body, "Priority Breakdown:\n- Medium:,1\n"))

	pdf, err := f.reports.Export(ctx, admin, "pdf", ReportFilter{})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf.Body, []byte("%PDF-")))
	assert.Equal(t, "application/pdf", pdf.ContentType)

	xlsx, err := f.reports.Export(ctx, admin, "xlsx", ReportFilter{})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(xlsx.Filename, ".xlsx"))
	assert.NotEmpty(t, xlsx.Body)
}

func TestReportCacheWithoutRedisIsPassThrough(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin, _ := seedReportData(t, f)

	before, err := f.reports.Summary(ctx, admin, ReportFilter{})
	require.NoError(t, err)
	require.NoError(t, f.reports.InvalidateCache(ctx))

	f.raise(t, admin, "fourth")
	after, err := f.reports.Summary(ctx, admin, ReportFilter{})
	require.NoError(t, err)
	assert.Equal(t, before.Total+1, after.Total)
}

func TestNotificationServiceHandlesEvents(t *testing.T) {
	f := newFixture(t)
	dispatcher := events.NewInMemoryDispatcher()
	notifications := NewNotificationService(dispatcher, zap.NewNop(), config.NotificationConfig{
		EmailFrom:     "noreply@example.com",
		WebhookURL:    "http://hooks.local",
		EventsChannel: "issue-events",
	}, nil, f.reports)
	notifications.RegisterHandlers()

	for _, eventType := range events.AllIssueEvents {
		err := dispatcher.Publish(context.Background(), events.Event{Type: eventType, IssueID: 1})
		assert.NoError(t, err, eventType)
	}
}

func TestReportFilterCacheKeyIsCanonical(t *testing.T) {
	from := time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)
	filter := ReportFilter{
		Statuses:    []domain.IssueStatus{domain.IssueStatusPending, domain.IssueStatusClaimed},
		Priorities:  []domain.IssuePriority{domain.IssuePriorityHigh},
		CreatedFrom: &from,
	}
	assert.Equal(t, "s=pending,claimed;p=high;from=2024-01-02;to=", filter.cacheKey())
	assert.Equal(t, "s=;p=;from=;to=", ReportFilter{}.cacheKey())
}

func TestParseReportFilter(t *testing.T) {
	cat := catalog.Default()

	filter, err := ParseReportFilter(cat, RawReportFilter{
		Status:   "pending, resolved",
		Priority: "high",
		DateFrom: "2024-03-01",
		DateTo:   "2024-03-31",
	})
	require.NoError(t, err)
	assert.Equal(t, []domain.IssueStatus{domain.IssueStatusPending, domain.IssueStatusResolved}, filter.Statuses)
	assert.Equal(t, []domain.IssuePriority{domain.IssuePriorityHigh}, filter.Priorities)
	require.NotNil(t, filter.CreatedFrom)
	require.NotNil(t, filter.CreatedTo)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), *filter.CreatedFrom)
	assert.Equal(t, time.Date(2024, 3, 31, 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC), *filter.CreatedTo)

	filter, err = ParseReportFilter(cat, RawReportFilter{DateTo: "2024-03-31T12:00:00Z"})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC), *filter.CreatedTo)

	for _, raw := range []RawReportFilter{
		{Status: "open"},
		{Priority: "urgent"},
		{DateFrom: "03/01/2024"},
	} {
		_, err := ParseReportFilter(cat, raw)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation), "%+v", raw)
	}
}
