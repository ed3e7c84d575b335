package export

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/go-pdf/fpdf"
)

const defaultPDFRowLimit = 50

type pdfColumn struct {
	title string
	width float64
}

var pdfIssueColumns = []pdfColumn{
	{"ID", 14},
	{"Title", 62},
	{"Status", 24},
	{"Priority", 20},
	{"Assigned", 32},
	{"Created", 22},
}

// RenderPDF writes an A4 report: metadata, summary statistics and at most rowLimit issues.
func RenderPDF(report *Report, rowLimit int) ([]byte, error) {
	if rowLimit <= 0 {
		rowLimit = defaultPDFRowLimit
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 15)
	pdf.SetCreationDate(report.GeneratedAt)
	pdf.SetModificationDate(report.GeneratedAt)
	pdf.SetTitle("Issues Report", true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "", 8)
		pdf.SetTextColor(107, 114, 128)
		pdf.CellFormat(0, 5, "Generated by Issues Management System", "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 22)
	pdf.SetTextColor(37, 99, 235)
	pdf.CellFormat(0, 12, "Issues Report", "", 1, "C", false, 0, "")
	pdf.Ln(6)

	metadata := [][2]string{
		{"Generated on:", formatTime(report.GeneratedAt)},
		{"Total records:", strconv.Itoa(report.Total())},
		{"Report type:", "Complete Issues Export"},
	}
	if len(report.Filters) > 0 {
		metadata = append(metadata, [2]string{"Filters applied:", ""})
		for _, filter := range report.Filters {
			metadata = append(metadata, [2]string{"- " + filter.Name + ":", filter.Value})
		}
	}
	pdf.SetTextColor(0, 0, 0)
	pdf.SetDrawColor(229, 231, 235)
	for _, line := range metadata {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(50, 7, tr(line[0]), "1", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(100, 7, tr(line[1]), "1", 1, "L", false, 0, "")
	}
	pdf.Ln(8)

	heading(pdf, "Summary Statistics")
	headerRow(pdf, []pdfColumn{{"Metric", 80}, {"Count", 30}, {"Percentage", 30}}, 37, 99, 235)
	pdf.SetFont("Helvetica", "", 10)
	total := report.Total()
	stats := make([][3]string, 0, len(report.ByStatus)+len(report.ByPriority))
	for _, count := range report.ByStatus {
		stats = append(stats, [3]string{"Status: " + count.Label, strconv.Itoa(count.Count), percentage(count.Count, total)})
	}
	for _, count := range report.ByPriority {
		stats = append(stats, [3]string{"Priority: " + count.Label, strconv.Itoa(count.Count), percentage(count.Count, total)})
	}
	for i, stat := range stats {
		fill := stripe(pdf, i)
		pdf.CellFormat(80, 7, tr(stat[0]), "1", 0, "C", fill, 0, "")
		pdf.CellFormat(30, 7, stat[1], "1", 0, "C", fill, 0, "")
		pdf.CellFormat(30, 7, stat[2], "1", 1, "C", fill, 0, "")
	}
	pdf.Ln(8)

	heading(pdf, "Issues Details")
	if total == 0 {
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, 7, "No issues found matching the specified criteria.", "", 1, "L", false, 0, "")
	} else {
		headerRow(pdf, pdfIssueColumns, 55, 65, 81)
		pdf.SetFont("Helvetica", "", 9)
		rows := report.Rows
		if len(rows) > rowLimit {
			rows = rows[:rowLimit]
		}
		for i, row := range rows {
			fill := stripe(pdf, i)
			cells := []string{
				strconv.FormatInt(row.ID, 10),
				truncate(row.Title, 30),
				row.Status,
				row.Priority,
				truncate(row.AssignedTo, 15),
				row.CreatedAt.Format("01/02/2006"),
			}
			for j, cell := range cells {
				ln := 0
				if j == len(cells)-1 {
					ln = 1
				}
				pdf.CellFormat(pdfIssueColumns[j].width, 7, tr(cell), "1", ln, "L", fill, 0, "")
			}
		}
		if total > rowLimit {
			pdf.Ln(6)
			pdf.SetFont("Helvetica", "", 10)
			pdf.MultiCell(0, 6, fmt.Sprintf("Note: Showing first %d issues out of %d total. Download CSV for complete data.", rowLimit, total), "", "L", false)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func heading(pdf *fpdf.Fpdf, text string) {
	pdf.SetFont("Helvetica", "B", 14)
	pdf.SetTextColor(55, 65, 81)
	pdf.CellFormat(0, 9, text, "", 1, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
}

func headerRow(pdf *fpdf.Fpdf, columns []pdfColumn, r, g, b int) {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(r, g, b)
	pdf.SetTextColor(255, 255, 255)
	for i, column := range columns {
		ln := 0
		if i == len(columns)-1 {
			ln = 1
		}
		pdf.CellFormat(column.width, 8, column.title, "1", ln, "C", true, 0, "")
	}
	pdf.SetTextColor(0, 0, 0)
}

// stripe alternates row backgrounds and reports whether the row is filled.
func stripe(pdf *fpdf.Fpdf, i int) bool {
	pdf.SetFillColor(248, 250, 252)
	return i%2 == 0
}
