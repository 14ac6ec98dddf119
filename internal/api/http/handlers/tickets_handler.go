package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/edutech-ops/chromebook-helpdesk/internal/api/dto"
	"github.com/edutech-ops/chromebook-helpdesk/internal/domain"
	"github.com/edutech-ops/chromebook-helpdesk/internal/repository"
	"github.com/edutech-ops/chromebook-helpdesk/internal/service"
	apperrors "github.com/edutech-ops/chromebook-helpdesk/pkg/util/errorutil"
)

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
	sla     *service.SLAService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService, slaService *service.SLAService) *TicketsHandler {
	return &TicketsHandler{service: ticketService, sla: slaService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.service.CreateTicket(c.UserContext(), service.TicketCreateInput{
		Requester:    req.Requester,
		Email:        req.Email,
		SchoolUnit:   req.SchoolUnit,
		AssetTag:     req.AssetTag,
		SerialNumber: req.SerialNumber,
		ProblemType:  req.ProblemType,
		Description:  req.Description,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.CreateTicketResponse{
		TicketNumber: ticket.Number,
		Ticket:       dto.NewTicketResponse(ticket),
	}})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	filter, err := parseTicketFilter(c)
	if err != nil {
		return err
	}
	tickets, err := h.service.ListTickets(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponses(tickets)})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	id, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.GetTicket(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketDetailResponse{
		TicketResponse: dto.NewTicketResponse(ticket),
		SLA:            dto.NewSLAStatusResponse(h.sla.Evaluate(ticket)),
	}})
}

// History GET /tickets/:id/history.
func (h *TicketsHandler) History(c *fiber.Ctx) error {
	id, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	entries, err := h.service.ListHistory(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewHistoryResponses(entries)})
}

// UpdateStatus PATCH /tickets/:id/status.
func (h *TicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	id, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.UpdateStatus(c.UserContext(), id, service.StatusChangeInput{
		Status:      req.Status,
		Responsible: req.Responsible,
		Notes:       req.Notes,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// Stats GET /tickets/stats.
func (h *TicketsHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.service.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": stats})
}

func ticketIDParam(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewFieldError("id", "id inválido")
	}
	return id, nil
}

// parseTicketFilter reads status (comma separated), prioridade and unidadeEscolar.
func parseTicketFilter(c *fiber.Ctx) (repository.TicketFilter, error) {
	filter := repository.TicketFilter{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			status := domain.TicketStatus(strings.TrimSpace(part))
			if !status.Valid() {
				return filter, apperrors.NewFieldError("status", "status inválido")
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}
	if priorityStr := strings.TrimSpace(c.Query("prioridade")); priorityStr != "" {
		priority := domain.TicketPriority(priorityStr)
		if !priority.Valid() {
			return filter, apperrors.NewFieldError("prioridade", "prioridade inválida")
		}
		filter.Priority = &priority
	}
	if unit := strings.TrimSpace(c.Query("unidadeEscolar")); unit != "" {
		filter.SchoolUnit = &unit
	}
	return filter, nil
}
