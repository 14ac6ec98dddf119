package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/edutech-ops/chromebook-helpdesk/internal/api/dto"
	"github.com/edutech-ops/chromebook-helpdesk/internal/service"
)

// ReportsHandler serves the summary and ticket exports.
type ReportsHandler struct {
	reports *service.ReportService
}

func NewReportsHandler(reports *service.ReportService) *ReportsHandler {
	return &ReportsHandler{reports: reports}
}

// Summary GET /reports/summary.
func (h *ReportsHandler) Summary(c *fiber.Ctx) error {
	report, err := h.reports.Summary(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": report})
}

// CSV GET /reports/csv.
func (h *ReportsHandler) CSV(c *fiber.Ctx) error {
	filter, err := parseTicketFilter(c)
	if err != nil {
		return err
	}
	export, err := h.reports.ExportCSV(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return sendExport(c, export)
}

// XLSX GET /reports/xlsx.
func (h *ReportsHandler) XLSX(c *fiber.Ctx) error {
	filter, err := parseTicketFilter(c)
	if err != nil {
		return err
	}
	export, err := h.reports.ExportXLSX(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return sendExport(c, export)
}

// JSON GET /reports/json.
func (h *ReportsHandler) JSON(c *fiber.Ctx) error {
	filter, err := parseTicketFilter(c)
	if err != nil {
		return err
	}
	tickets, err := h.reports.FilteredTickets(c.UserContext(), filter)
	if err != nil {
		return err
	}
	filename := h.reports.JSONFilename()
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, filename))
	return c.JSON(dto.ExportJSONResponse{
		Filename: filename,
		Total:    len(tickets),
		Tickets:  dto.NewTicketResponses(tickets),
	})
}

func sendExport(c *fiber.Ctx, export *service.Export) error {
	c.Set(fiber.HeaderContentType, export.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, export.Filename))
	return c.Send(export.Data)
}
