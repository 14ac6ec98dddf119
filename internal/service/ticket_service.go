package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/edutech-ops/chromebook-helpdesk/internal/domain"
	"github.com/edutech-ops/chromebook-helpdesk/internal/events"
	"github.com/edutech-ops/chromebook-helpdesk/internal/repository"
	apperrors "github.com/edutech-ops/chromebook-helpdesk/pkg/util/errorutil"
)

const (
	minDescriptionLength = 10
	maxNumberAttempts    = 3
)

// TicketService coordinates the ticket lifecycle: creation and status transitions.
type TicketService struct {
	tickets          repository.TicketRepository
	rules            repository.SLARuleRepository
	history          repository.TicketHistoryRepository
	cache            repository.ReportCache
	dispatcher       events.Dispatcher
	defaultAllowance time.Duration
	logger           *zap.Logger
	now              func() time.Time
}

// TicketDependencies bundles repositories for ticket service.
type TicketDependencies struct {
	TicketRepo       repository.TicketRepository
	SLARuleRepo      repository.SLARuleRepository
	HistoryRepo      repository.TicketHistoryRepository
	Cache            repository.ReportCache
	Dispatcher       events.Dispatcher
	DefaultAllowance time.Duration
	Logger           *zap.Logger
	Now              func() time.Time
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Requester    string
	Email        *string
	SchoolUnit   string
	AssetTag     string
	SerialNumber *string
	ProblemType  domain.ProblemType
	Description  string
}

// StatusChangeInput describes a status transition request.
type StatusChangeInput struct {
	Status      domain.TicketStatus
	Responsible string
	Notes       *string
}

// TicketStats feeds the dashboard counters.
type TicketStats struct {
	Total                 int     `json:"totalChamados"`
	Open                  int     `json:"totalAbertos"`
	Resolved              int     `json:"totalResolvidos"`
	Late                  int     `json:"totalAtrasados"`
	AverageResolutionMins int     `json:"tempoMedioAtendimento"`
	ResolutionRate        float64 `json:"taxaResolucao"`
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	s := &TicketService{
		tickets:          deps.TicketRepo,
		rules:            deps.SLARuleRepo,
		history:          deps.HistoryRepo,
		cache:            deps.Cache,
		dispatcher:       deps.Dispatcher,
		defaultAllowance: deps.DefaultAllowance,
		logger:           deps.Logger,
		now:              deps.Now,
	}
	if s.defaultAllowance <= 0 {
		s.defaultAllowance = 24 * time.Hour
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// CreateTicket validates the input, derives priority and SLA deadline, and persists
// a new ticket in the open state.
func (s *TicketService) CreateTicket(ctx context.Context, input TicketCreateInput) (*domain.Ticket, error) {
	input, err := normalizeCreateInput(input)
	if err != nil {
		return nil, err
	}

	allowance, err := s.allowanceFor(ctx, input.ProblemType)
	if err != nil {
		return nil, err
	}

	openedAt := s.now()
	deadline := openedAt.Add(allowance)
	ticket := &domain.Ticket{
		Requester:    input.Requester,
		Email:        input.Email,
		SchoolUnit:   input.SchoolUnit,
		AssetTag:     input.AssetTag,
		SerialNumber: input.SerialNumber,
		ProblemType:  input.ProblemType,
		Description:  input.Description,
		Priority:     domain.PriorityFor(input.ProblemType),
		Status:       domain.TicketStatusOpen,
		OpenedAt:     openedAt,
		SLADeadline:  &deadline,
	}

	if err := s.insertNumbered(ctx, ticket); err != nil {
		return nil, err
	}
	s.logger.Info("ticket created",
		zap.String("ticket_number", ticket.Number),
		zap.String("problem_type", string(ticket.ProblemType)),
		zap.String("priority", string(ticket.Priority)),
		zap.Time("sla_deadline", deadline))

	s.invalidateReports(ctx)
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Payload: events.TicketCreatedPayload{
			TicketNumber: ticket.Number,
			ProblemType:  ticket.ProblemType,
			Priority:     ticket.Priority,
			SchoolUnit:   ticket.SchoolUnit,
			SLADeadline:  ticket.SLADeadline,
		},
	})
	return ticket, nil
}

// insertNumbered assigns the next CH- number and inserts the ticket, retrying
// when a concurrent create took the same number.
func (s *TicketService) insertNumbered(ctx context.Context, ticket *domain.Ticket) error {
	for attempt := 1; attempt <= maxNumberAttempts; attempt++ {
		last, err := s.tickets.LastNumber(ctx)
		if err != nil {
			return fmt.Errorf("next ticket number: %w", err)
		}
		ticket.Number = domain.NextTicketNumber(last)

		err = s.tickets.Create(ctx, ticket)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrTicketNumberTaken) {
			return fmt.Errorf("create ticket: %w", err)
		}
		s.logger.Warn("ticket number taken, retrying",
			zap.String("ticket_number", ticket.Number),
			zap.Int("attempt", attempt))
	}
	return apperrors.NewConflict("não foi possível gerar o número do chamado", map[string]any{"attempts": maxNumberAttempts})
}

// UpdateStatus moves a ticket to a new status and appends one history entry.
func (s *TicketService) UpdateStatus(ctx context.Context, ticketID int64, input StatusChangeInput) (*domain.Ticket, error) {
	responsible := strings.TrimSpace(input.Responsible)
	if responsible == "" {
		return nil, apperrors.NewFieldError("responsavelAtendimento", "responsável é obrigatório")
	}
	if !input.Status.Valid() {
		return nil, apperrors.NewFieldError("status", "status inválido")
	}
	notes := trimmedOrNil(input.Notes)

	ticket, err := s.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	oldStatus := ticket.Status
	update := repository.StatusUpdate{
		Status:      input.Status,
		Responsible: &responsible,
		Notes:       notes,
	}
	if input.Status == domain.TicketStatusResolved && oldStatus != domain.TicketStatusResolved {
		now := s.now()
		minutes := elapsedMinutes(ticket.OpenedAt, now)
		update.ResolvedAt = &now
		update.ResolutionMinutes = &minutes
	}

	if err := s.tickets.UpdateStatus(ctx, ticket.ID, update); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"id": ticketID})
		}
		return nil, fmt.Errorf("update ticket status: %w", err)
	}
	applyStatusUpdate(ticket, update)

	previous := oldStatus
	entry := &domain.TicketHistory{
		TicketID:       ticket.ID,
		PreviousStatus: &previous,
		NewStatus:      input.Status,
		Responsible:    responsible,
		Notes:          notes,
		ChangedAt:      s.now(),
	}
	if err := s.history.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("record ticket history: %w", err)
	}

	s.logger.Info("ticket status changed",
		zap.String("ticket_number", ticket.Number),
		zap.String("old_status", string(oldStatus)),
		zap.String("new_status", string(input.Status)),
		zap.String("responsible", responsible))

	s.invalidateReports(ctx)
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		Payload: events.TicketStatusChangedPayload{
			TicketNumber: ticket.Number,
			OldStatus:    oldStatus,
			NewStatus:    input.Status,
			Responsible:  responsible,
		},
	})
	return ticket, nil
}

// GetTicket fetches a single ticket.
func (s *TicketService) GetTicket(ctx context.Context, ticketID int64) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"id": ticketID})
		}
		return nil, err
	}
	return ticket, nil
}

// ListTickets returns tickets ordered by opening time.
func (s *TicketService) ListTickets(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	return s.tickets.List(ctx, filter)
}

// ListHistory returns the status transitions of a ticket, oldest first.
func (s *TicketService) ListHistory(ctx context.Context, ticketID int64) ([]domain.TicketHistory, error) {
	if _, err := s.GetTicket(ctx, ticketID); err != nil {
		return nil, err
	}
	return s.history.ListByTicket(ctx, ticketID)
}

// ListSLARules exposes the configured deadline table.
func (s *TicketService) ListSLARules(ctx context.Context) ([]domain.SLARule, error) {
	return s.rules.List(ctx)
}

// Stats computes the dashboard counters.
func (s *TicketService) Stats(ctx context.Context) (*TicketStats, error) {
	tickets, err := s.tickets.List(ctx, repository.TicketFilter{})
	if err != nil {
		return nil, err
	}

	stats := &TicketStats{Total: len(tickets)}
	var minutesSum, minutesCount int
	for i := range tickets {
		t := &tickets[i]
		switch t.Status {
		case domain.TicketStatusOpen:
			stats.Open++
		case domain.TicketStatusResolved:
			stats.Resolved++
		}
		if t.SLAViolated && t.Status != domain.TicketStatusResolved {
			stats.Late++
		}
		if minutes, ok := countedResolution(t); ok {
			minutesSum += minutes
			minutesCount++
		}
	}
	stats.AverageResolutionMins = averageMinutes(minutesSum, minutesCount)
	stats.ResolutionRate = percentage(stats.Resolved, stats.Total)
	return stats, nil
}

func (s *TicketService) allowanceFor(ctx context.Context, problem domain.ProblemType) (time.Duration, error) {
	rule, err := s.rules.GetByProblemType(ctx, problem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return s.defaultAllowance, nil
		}
		return 0, fmt.Errorf("load sla rule: %w", err)
	}
	if rule.Hours <= 0 {
		return s.defaultAllowance, nil
	}
	return rule.Allowance(), nil
}

func (s *TicketService) invalidateReports(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateSummary(ctx); err != nil {
		s.logger.Warn("invalidate summary cache", zap.Error(err))
	}
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	publishEvent(ctx, s.dispatcher, s.logger, s.now, event)
}

func publishEvent(ctx context.Context, dispatcher events.Dispatcher, logger *zap.Logger, now func() time.Time, event events.Event) {
	if dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = now()
	}
	if err := dispatcher.Publish(ctx, event); err != nil {
		logger.Warn("event handler failed",
			zap.String("event_type", string(event.Type)),
			zap.Int64("ticket_id", event.TicketID),
			zap.Error(err))
	}
}

func normalizeCreateInput(input TicketCreateInput) (TicketCreateInput, error) {
	input.Requester = strings.TrimSpace(input.Requester)
	input.SchoolUnit = strings.TrimSpace(input.SchoolUnit)
	input.AssetTag = strings.TrimSpace(input.AssetTag)
	input.Description = strings.TrimSpace(input.Description)
	input.Email = trimmedOrNil(input.Email)
	input.SerialNumber = trimmedOrNil(input.SerialNumber)

	switch {
	case input.Requester == "":
		return input, apperrors.NewFieldError("solicitante", "solicitante é obrigatório")
	case input.SchoolUnit == "":
		return input, apperrors.NewFieldError("unidadeEscolar", "unidade escolar é obrigatória")
	case input.AssetTag == "":
		return input, apperrors.NewFieldError("patrimonioChromebook", "patrimônio do Chromebook é obrigatório")
	case !input.ProblemType.Valid():
		return input, apperrors.NewFieldError("tipoProblema", "tipo de problema inválido")
	case utf8.RuneCountInString(input.Description) < minDescriptionLength:
		return input, apperrors.NewFieldError("descricaoDetalhada", "descrição deve ter pelo menos 10 caracteres")
	}
	if input.Email != nil && !validEmail(*input.Email) {
		return input, apperrors.NewFieldError("email", "email inválido")
	}
	return input, nil
}

// validEmail accepts bare addresses whose domain has a top-level label.
func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return false
	}
	_, domainPart, ok := strings.Cut(email, "@")
	if !ok {
		return false
	}
	dot := strings.LastIndex(domainPart, ".")
	return dot > 0 && dot < len(domainPart)-1
}

func applyStatusUpdate(ticket *domain.Ticket, update repository.StatusUpdate) {
	ticket.Status = update.Status
	if update.Responsible != nil {
		ticket.Responsible = update.Responsible
	}
	if update.Notes != nil {
		ticket.ResolutionNotes = update.Notes
	}
	if update.ResolvedAt != nil {
		ticket.ResolvedAt = update.ResolvedAt
	}
	if update.ResolutionMinutes != nil {
		ticket.ResolutionMinutes = update.ResolutionMinutes
	}
}

func trimmedOrNil(val *string) *string {
	if val == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*val)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// elapsedMinutes floors to whole minutes.
func elapsedMinutes(from, to time.Time) int {
	if to.Before(from) {
		return 0
	}
	return int(to.Sub(from) / time.Minute)
}

// countedResolution yields the elapsed minutes a ticket contributes to the
// average: only currently resolved tickets with a non-zero recorded time.
func countedResolution(t *domain.Ticket) (int, bool) {
	if t.Status != domain.TicketStatusResolved || t.ResolutionMinutes == nil || *t.ResolutionMinutes <= 0 {
		return 0, false
	}
	return *t.ResolutionMinutes, true
}

func averageMinutes(sum, count int) int {
	return int(math.Round(float64(sum) / float64(max(count, 1))))
}

// percentage returns part/total*100 rounded to 2 decimals, 0 when total is 0.
func percentage(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return round2(float64(part) / float64(total) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
