package export

import (
	"bytes"
	"encoding/csv"
	"strconv"
)

const utf8BOM = "\ufeff"

var csvHeader = []string{
	"Issue ID",
	"Title",
	"Description",
	"Status",
	"Priority",
	"Category",
	"Subcategory",
	"Assigned To",
	"Reporter",
	"Store",
	"Floor",
	"Created Date",
	"Updated Date",
}

// RenderCSV writes the report as a spreadsheet-friendly CSV with a metadata preamble and
// trailing summary statistics.
func RenderCSV(report *Report) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(utf8BOM)
	w := csv.NewWriter(&buf)

	rows := [][]string{
		{"# Issues Export Report"},
		{"# Generated on: " + formatTime(report.GeneratedAt)},
		{"# Total Records: " + strconv.Itoa(report.Total())},
	}
	if len(report.Filters) > 0 {
		rows = append(rows, []string{"# Filters Applied:"})
		for _, filter := range report.Filters {
			rows = append(rows, []string{"# - " + filter.Name + ": " + filter.Value})
		}
	}
	rows = append(rows, []string{}, csvHeader)

	for _, row := range report.Rows {
		rows = append(rows, []string{
			strconv.FormatInt(row.ID, 10),
			row.Title,
			truncate(row.Description, 100),
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
		})
	}

	rows = append(rows,
		[]string{},
		[]string{"# SUMMARY STATISTICS"},
		[]string{"Total Issues:", strconv.Itoa(report.Total())},
		[]string{"Status Breakdown:"},
	)
	for _, count := range report.ByStatus {
		rows = append(rows, []string{"- " + count.Label + ":", strconv.Itoa(count.Count)})
	}
	rows = append(rows, []string{"Priority Breakdown:"})
	for _, count := range report.ByPriority {
		rows = append(rows, []string{"- " + count.Label + ":", strconv.Itoa(count.Count)})
	}

	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
