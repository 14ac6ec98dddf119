package dto

import (
	"time"

	"github.com/edutech-ops/chromebook-helpdesk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Requester    string             `json:"solicitante"`
	Email        *string            `json:"email"`
	SchoolUnit   string             `json:"unidadeEscolar"`
	AssetTag     string             `json:"patrimonioChromebook"`
	SerialNumber *string            `json:"numeroSerie"`
	ProblemType  domain.ProblemType `json:"tipoProblema"`
	Description  string             `json:"descricaoDetalhada"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status      domain.TicketStatus `json:"status"`
	Responsible string              `json:"responsavelAtendimento"`
	Notes       *string             `json:"observacoesSolucao"`
}

// TicketResponse is the public shape of a ticket.
type TicketResponse struct {
	ID                int64                 `json:"id"`
	Number            string                `json:"ticketNumber"`
	Requester         string                `json:"solicitante"`
	Email             *string               `json:"email"`
	SchoolUnit        string                `json:"unidadeEscolar"`
	AssetTag          string                `json:"patrimonioChromebook"`
	SerialNumber      *string               `json:"numeroSerie"`
	ProblemType       domain.ProblemType    `json:"tipoProblema"`
	Description       string                `json:"descricaoDetalhada"`
	Priority          domain.TicketPriority `json:"prioridade"`
	Status            domain.TicketStatus   `json:"status"`
	OpenedAt          time.Time             `json:"dataAbertura"`
	ResolvedAt        *time.Time            `json:"dataResolucao"`
	Responsible       *string               `json:"responsavelAtendimento"`
	ResolutionNotes   *string               `json:"observacoesSolucao"`
	SLAViolated       bool                  `json:"slaVencido"`
	SLADeadline       *time.Time            `json:"dataLimiteSla"`
	ResolutionMinutes *int                  `json:"tempoAtendimentoMinutos"`
	CreatedAt         time.Time             `json:"createdAt"`
	UpdatedAt         time.Time             `json:"updatedAt"`
}

// TicketDetailResponse adds the live SLA evaluation.
type TicketDetailResponse struct {
	TicketResponse
	SLA SLAStatusResponse `json:"sla"`
}

// CreateTicketResponse returns the persisted ticket and its number.
type CreateTicketResponse struct {
	TicketNumber string         `json:"ticketNumber"`
	Ticket       TicketResponse `json:"ticket"`
}

// TicketHistoryResponse is one status transition.
type TicketHistoryResponse struct {
	ID             int64                `json:"id"`
	TicketID       int64                `json:"ticketId"`
	PreviousStatus *domain.TicketStatus `json:"statusAnterior"`
	NewStatus      domain.TicketStatus  `json:"statusNovo"`
	Responsible    string               `json:"responsavel"`
	Notes          *string              `json:"observacoes"`
	ChangedAt      time.Time            `json:"dataAlteracao"`
}

// SLAStatusResponse reports time left until the deadline.
type SLAStatusResponse struct {
	Status         domain.SLAState `json:"status"`
	Message        string          `json:"message"`
	HoursRemaining *float64        `json:"hoursRemaining"`
}

// SLARuleResponse is one row of the deadline table.
type SLARuleResponse struct {
	ID          int64                 `json:"id"`
	ProblemType domain.ProblemType    `json:"tipoProblema"`
	Priority    domain.TicketPriority `json:"prioridade"`
	Hours       int                   `json:"tempoLimiteHoras"`
}

// OverdueTicketResponse is a ticket past its deadline.
type OverdueTicketResponse struct {
	TicketResponse
	HoursOverdue int `json:"hoursOverdue"`
}

// AtRiskTicketResponse is a ticket close to its deadline.
type AtRiskTicketResponse struct {
	TicketResponse
	HoursRemaining float64 `json:"hoursRemaining"`
}

// ExportJSONResponse is the body of the JSON export.
type ExportJSONResponse struct {
	Filename string           `json:"filename"`
	Total    int              `json:"total"`
	Tickets  []TicketResponse `json:"tickets"`
}

// NewTicketResponse maps a domain ticket.
func NewTicketResponse(ticket *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:                ticket.ID,
		Number:            ticket.Number,
		Requester:         ticket.Requester,
		Email:             ticket.Email,
		SchoolUnit:        ticket.SchoolUnit,
		AssetTag:          ticket.AssetTag,
		SerialNumber:      ticket.SerialNumber,
		ProblemType:       ticket.ProblemType,
		Description:       ticket.Description,
		Priority:          ticket.Priority,
		Status:            ticket.Status,
		OpenedAt:          ticket.OpenedAt,
		ResolvedAt:        ticket.ResolvedAt,
		Responsible:       ticket.Responsible,
		ResolutionNotes:   ticket.ResolutionNotes,
		SLAViolated:       ticket.SLAViolated,
		SLADeadline:       ticket.SLADeadline,
		ResolutionMinutes: ticket.ResolutionMinutes,
		CreatedAt:         ticket.CreatedAt,
		UpdatedAt:         ticket.UpdatedAt,
	}
}

// NewTicketResponses maps a list, never returning nil.
func NewTicketResponses(tickets []domain.Ticket) []TicketResponse {
	items := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, NewTicketResponse(&tickets[i]))
	}
	return items
}

func NewSLAStatusResponse(status domain.SLAStatus) SLAStatusResponse {
	return SLAStatusResponse{Status: status.State, Message: status.Message, HoursRemaining: status.HoursRemaining}
}

func NewHistoryResponses(entries []domain.TicketHistory) []TicketHistoryResponse {
	resp := make([]TicketHistoryResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, TicketHistoryResponse{
			ID:             entry.ID,
			TicketID:       entry.TicketID,
			PreviousStatus: entry.PreviousStatus,
			NewStatus:      entry.NewStatus,
			Responsible:    entry.Responsible,
			Notes:          entry.Notes,
			ChangedAt:      entry.ChangedAt,
		})
	}
	return resp
}

func NewSLARuleResponses(rules []domain.SLARule) []SLARuleResponse {
	resp := make([]SLARuleResponse, 0, len(rules))
	for _, rule := range rules {
		resp = append(resp, SLARuleResponse{
			ID:          rule.ID,
			ProblemType: rule.ProblemType,
			Priority:    rule.Priority,
			Hours:       rule.Hours,
		})
	}
	return resp
}
