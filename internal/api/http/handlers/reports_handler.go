package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/issuedesk/issue-service/internal/catalog"
	"github.com/issuedesk/issue-service/internal/service"
)

// ReportsHandler serves aggregate reports and exports.
type ReportsHandler struct {
	reports *service.ReportService
	catalog *catalog.Catalog
}

// NewReportsHandler constructs handler.
func NewReportsHandler(reports *service.ReportService, c *catalog.Catalog) *ReportsHandler {
	return &ReportsHandler{reports: reports, catalog: c}
}

// Summary GET /reports/summary.
func (h *ReportsHandler) Summary(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	filter, err := parseReportFilter(c, h.catalog)
	if err != nil {
		return err
	}
	summary, err := h.reports.Summary(c.UserContext(), p.Actor(), filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": summary})
}

// Download GET /reports/download/:format.
func (h *ReportsHandler) Download(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	filter, err := parseReportFilter(c, h.catalog)
	if err != nil {
		return err
	}
	doc, err := h.reports.Export(c.UserContext(), p.Actor(), c.Params("format"), filter)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, doc.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", doc.Filename))
	return c.Send(doc.Body)
}
