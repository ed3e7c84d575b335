package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	apperrors "github.com/issuedesk/issue-service/pkg/util"
)

func sampleReport() *Report {
	created := time.Date(2024, 3, 4, 9, 15, 0, 0, time.UTC)
	return &Report{
		GeneratedAt: time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC),
		Filters:     []Filter{{Name: "Status", Value: "pending"}},
		Rows: []Row{
			{
				ID:          2,
				Title:       "Printer jam, floor 3",
				Description: "Paper keeps jamming",
				Status:      "Pending",
				Priority:    "High",
				Category:    "hardware",
				Subcategory: "printer",
				AssignedTo:  "Unassigned",
				Reporter:    "Ada Lovelace",
				StoreName:   "Main",
				Floor:       "3",
				CreatedAt:   created,
				UpdatedAt:   created,
			},
			{
				ID:          1,
				Title:       `Monitor "flickers"`,
				Description: strings.Repeat("x", 120),
				Status:      "Pending",
				Priority:    "Medium",
				AssignedTo:  "Grace Hopper",
				Reporter:    "Ada Lovelace",
				CreatedAt:   time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
				UpdatedAt:   time.Date(2024, 3, 2, 10, 30, 0, 0, time.UTC),
			},
		},
		ByStatus:   []Count{{Label: "Pending", Count: 2}},
		ByPriority: []Count{{Label: "High", Count: 1}, {Label: "Medium", Count: 1}},
	}
}

func TestRenderCSVMatchesGolden(t *testing.T) {
	body, err := RenderCSV(sampleReport())
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "issues_report_csv", body)
}

func TestRenderCSVWithoutFilters(t *testing.T) {
	report := sampleReport()
	report.Filters = nil
	report.Rows = nil

	body, err := RenderCSV(report)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "Filters Applied")
	assert.Contains(t, string(body), "# Total Records: 0\n\nIssue ID,")
}

func TestRenderPDF(t *testing.T) {
	body, err := RenderPDF(sampleReport(), 1)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF-")))

	empty := sampleReport()
	empty.Rows = nil
	body, err = RenderPDF(empty, 0)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF-")))
}

func TestRenderXLSX(t *testing.T) {
	body, err := RenderXLSX(sampleReport())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(body))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{issuesSheet, summarySheet}, f.GetSheetList())

	header, err := f.GetCellValue(issuesSheet, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Issue ID", header)

	title, err := f.GetCellValue(issuesSheet, "B2")
	require.NoError(t, err)
	assert.Equal(t, "Printer jam, floor 3", title)

	description, err := f.GetCellValue(issuesSheet, "C3")
	require.NoError(t, err)
	assert.Len(t, description, 120)

	total, err := f.GetCellValue(summarySheet, "B3")
	require.NoError(t, err)
	assert.Equal(t, "2", total)
}

func TestRenderAndFilename(t *testing.T) {
	doc, err := Render(FormatCSV, sampleReport(), Options{})
	require.NoError(t, err)
	assert.Equal(t, "issues_report_20240305_143000.csv", doc.Filename)
	assert.Equal(t, "text/csv; charset=utf-8", doc.ContentType)

	format, err := ParseFormat(" XLSX ")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, format)

	_, err = ParseFormat("docx")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestTruncateAndPercentage(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 3))
	assert.Equal(t, "ab...", truncate("abc", 2))
	assert.Equal(t, "33.3%", percentage(1, 3))
	assert.Equal(t, "0.0%", percentage(0, 0))
}
