package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/edutech-ops/chromebook-helpdesk/internal/api/dto"
	"github.com/edutech-ops/chromebook-helpdesk/internal/observability"
	"github.com/edutech-ops/chromebook-helpdesk/internal/service"
)

// SLAHandler exposes deadline evaluation and the violation scan.
type SLAHandler struct {
	sla     *service.SLAService
	tickets *service.TicketService
	metrics *observability.Metrics
}

func NewSLAHandler(slaService *service.SLAService, ticketService *service.TicketService, metrics *observability.Metrics) *SLAHandler {
	return &SLAHandler{sla: slaService, tickets: ticketService, metrics: metrics}
}

// Rules GET /sla/rules.
func (h *SLAHandler) Rules(c *fiber.Ctx) error {
	rules, err := h.tickets.ListSLARules(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSLARuleResponses(rules)})
}

// TicketStatus GET /sla/tickets/:id.
func (h *SLAHandler) TicketStatus(c *fiber.Ctx) error {
	id, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.GetTicket(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSLAStatusResponse(h.sla.Evaluate(ticket))})
}

// Violations GET /sla/violations.
func (h *SLAHandler) Violations(c *fiber.Ctx) error {
	overdue, err := h.sla.Violations(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.OverdueTicketResponse, 0, len(overdue))
	for i := range overdue {
		items = append(items, dto.OverdueTicketResponse{
			TicketResponse: dto.NewTicketResponse(&overdue[i].Ticket),
			HoursOverdue:   overdue[i].HoursOverdue,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

// AtRisk GET /sla/at-risk.
func (h *SLAHandler) AtRisk(c *fiber.Ctx) error {
	atRisk, err := h.sla.AtRisk(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.AtRiskTicketResponse, 0, len(atRisk))
	for i := range atRisk {
		items = append(items, dto.AtRiskTicketResponse{
			TicketResponse: dto.NewTicketResponse(&atRisk[i].Ticket),
			HoursRemaining: atRisk[i].HoursRemaining,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

// Check POST /sla/check.
func (h *SLAHandler) Check(c *fiber.Ctx) error {
	result, err := h.sla.ScanViolations(c.UserContext())
	if err != nil {
		return err
	}
	h.metrics.RecordSLAScan(time.Now(), result.ViolationsFound, result.CriticalIssues)
	return c.JSON(fiber.Map{"data": result})
}
