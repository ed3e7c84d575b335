// Package export renders issue reports as downloadable CSV, PDF and XLSX documents.
package export

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/issuedesk/issue-service/pkg/util"
)

// Format names a supported download format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
)

// Formats lists every supported format.
var Formats = []Format{FormatCSV, FormatPDF, FormatXLSX}

// ParseFormat resolves a case-insensitive format name.
func ParseFormat(raw string) (Format, error) {
	candidate := Format(strings.ToLower(strings.TrimSpace(raw)))
	for _, format := range Formats {
		if format == candidate {
			return format, nil
		}
	}
	return "", apperrors.NewValidationError("invalid format type", map[string]any{
		"format":    raw,
		"supported": Formats,
	})
}

// ContentType returns the MIME type served for format.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatPDF:
		return "application/pdf"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "application/octet-stream"
}

// Filename returns the download name for a report generated at t.
func Filename(format Format, t time.Time) string {
	return fmt.Sprintf("issues_report_%s.%s", t.Format("20060102_150405"), format)
}

// Row is one issue as it appears in a report.
type Row struct {
	ID          int64
	Title       string
	Description string
	Status      string
	Priority    string
	Category    string
	Subcategory string
	AssignedTo  string
	Reporter    string
	StoreName   string
	Floor       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Filter is an applied report filter, already formatted for display.
type Filter struct {
	Name  string
	Value string
}

// Count is a labelled tally used in breakdowns.
type Count struct {
	Label string
	Count int
}

// Report is the input of every renderer. Rows are expected newest first.
type Report struct {
	GeneratedAt time.Time
	Filters     []Filter
	Rows        []Row
	ByStatus    []Count
	ByPriority  []Count
}

// Total returns the number of rows in the report.
func (r *Report) Total() int {
	return len(r.Rows)
}

// Document is a rendered report ready to be served.
type Document struct {
	Filename    string
	ContentType string
	Body        []byte
}

// Options tunes rendering.
type Options struct {
	// PDFRowLimit caps the issues listed in a PDF. Non-positive means 50.
	PDFRowLimit int
}

// Render produces the document for format.
func Render(format Format, report *Report, opts Options) (*Document, error) {
	var (
		body []byte
		err  error
	)
	switch format {
	case FormatCSV:
		body, err = RenderCSV(report)
	case FormatPDF:
		body, err = RenderPDF(report, opts.PDFRowLimit)
	case FormatXLSX:
		body, err = RenderXLSX(report)
	default:
		_, err = ParseFormat(string(format))
	}
	if err != nil {
		return nil, err
	}
	return &Document{
		Filename:    Filename(format, report.GeneratedAt),
		ContentType: format.ContentType(),
		Body:        body,
	}, nil
}

const timestampLayout = "2006-01-02 15:04:05"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(timestampLayout)
}

// truncate shortens s to max runes followed by an ellipsis.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

func percentage(count, total int) string {
	if total == 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", float64(count)/float64(total)*100)
}
