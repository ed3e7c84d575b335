package export

import (
	"bytes"

	"github.com/xuri/excelize/v2"
)

const (
	issuesSheet  = "Issues"
	summarySheet = "Summary"
)

// RenderXLSX writes every row to an "Issues" sheet and the breakdowns to a "Summary" sheet.
func RenderXLSX(report *Report) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", issuesSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	if err := setRow(f, issuesSheet, 1, toAny(csvHeader)); err != nil {
		return nil, err
	}
	if err := f.SetRowStyle(issuesSheet, 1, 1, bold); err != nil {
		return nil, err
	}
	for i, row := range report.Rows {
		values := []any{
			row.ID,
			row.Title,
			row.Description,
			row.Status,
			row.Priority,
			row.Category,
			row.Subcategory,
			row.AssignedTo,
			row.Reporter,
			row.StoreName,
			row.Floor,
			formatTime(row.CreatedAt),
			formatTime(row.UpdatedAt),
		}
		if err := setRow(f, issuesSheet, i+2, values); err != nil {
			return nil, err
		}
	}
	if err := f.SetColWidth(issuesSheet, "B", "C", 40); err != nil {
		return nil, err
	}

	summary := [][]any{
		{"Issues Export Report"},
		{"Generated on", formatTime(report.GeneratedAt)},
		{"Total Records", report.Total()},
	}
	for _, filter := range report.Filters {
		summary = append(summary, []any{"Filter: " + filter.Name, filter.Value})
	}
	summary = append(summary, []any{}, []any{"Metric", "Count", "Percentage"})
	for _, count := range report.ByStatus {
		summary = append(summary, []any{"Status: " + count.Label, count.Count, percentage(count.Count, report.Total())})
	}
	for _, count := range report.ByPriority {
		summary = append(summary, []any{"Priority: " + count.Label, count.Count, percentage(count.Count, report.Total())})
	}
	for i, values := range summary {
		if err := setRow(f, summarySheet, i+1, values); err != nil {
			return nil, err
		}
	}
	if err := f.SetCellStyle(summarySheet, "A1", "A1", bold); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(summarySheet, "A", "A", 30); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	if len(values) == 0 {
		return nil
	}
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
