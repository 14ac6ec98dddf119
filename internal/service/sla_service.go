package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/edutech-ops/chromebook-helpdesk/internal/domain"
	"github.com/edutech-ops/chromebook-helpdesk/internal/events"
	"github.com/edutech-ops/chromebook-helpdesk/internal/repository"
)

const (
	slaCriticalWindow   = time.Hour
	slaWarningWindow    = 4 * time.Hour
	criticalGracePeriod = 2 * time.Hour
)

// SLAService evaluates deadlines and scans open tickets for violations.
type SLAService struct {
	tickets    repository.TicketRepository
	cache      repository.ReportCache
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// SLADependencies bundles collaborators for the SLA service.
type SLADependencies struct {
	TicketRepo repository.TicketRepository
	Cache      repository.ReportCache
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Now        func() time.Time
}

// ScanResult summarizes one violation scan.
type ScanResult struct {
	TicketsChecked  int `json:"totalTicketsChecked"`
	ViolationsFound int `json:"violationsFound"`
	CriticalIssues  int `json:"criticalIssues"`
}

// OverdueTicket is an open ticket past its deadline.
type OverdueTicket struct {
	Ticket       domain.Ticket
	HoursOverdue int
}

// AtRiskTicket is an open ticket whose deadline falls inside the warning window.
type AtRiskTicket struct {
	Ticket         domain.Ticket
	HoursRemaining float64
}

func NewSLAService(deps SLADependencies) *SLAService {
	s := &SLAService{
		tickets:    deps.TicketRepo,
		cache:      deps.Cache,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		now:        deps.Now,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// StatusFor classifies the time left until the ticket's deadline at instant now.
func StatusFor(ticket *domain.Ticket, now time.Time) domain.SLAStatus {
	if ticket.SLADeadline == nil {
		return domain.SLAStatus{State: domain.SLAStateUnknown, Message: "SLA não configurado"}
	}

	remaining := ticket.SLADeadline.Sub(now)
	if remaining <= 0 {
		zero := 0.0
		return domain.SLAStatus{State: domain.SLAStateViolated, Message: "SLA vencido", HoursRemaining: &zero}
	}

	hours := round2(remaining.Hours())
	switch {
	case remaining <= slaCriticalWindow:
		return domain.SLAStatus{State: domain.SLAStateCritical, Message: "SLA crítico (menos de 1 hora)", HoursRemaining: &hours}
	case remaining <= slaWarningWindow:
		return domain.SLAStatus{State: domain.SLAStateWarning, Message: "SLA em risco", HoursRemaining: &hours}
	default:
		return domain.SLAStatus{State: domain.SLAStateOK, Message: "SLA dentro do prazo", HoursRemaining: &hours}
	}
}

// Evaluate returns the SLA status of ticket at the service clock.
func (s *SLAService) Evaluate(ticket *domain.Ticket) domain.SLAStatus {
	return StatusFor(ticket, s.now())
}

// ScanViolations flags open tickets whose deadline has newly passed and reports
// critical tickets left unattended past the grace period. Notification failures
// are logged and do not abort the scan.
func (s *SLAService) ScanViolations(ctx context.Context) (*ScanResult, error) {
	tickets, err := s.tickets.List(ctx, repository.TicketFilter{})
	if err != nil {
		s.logger.Error("sla scan failed", zap.Error(err))
		return nil, fmt.Errorf("list tickets: %w", err)
	}

	now := s.now()
	result := &ScanResult{TicketsChecked: len(tickets)}
	for i := range tickets {
		ticket := &tickets[i]
		if ticket.Status.Closed() {
			continue
		}

		if ticket.SLADeadline != nil && now.After(*ticket.SLADeadline) && !ticket.SLAViolated {
			if err := s.tickets.MarkSLAViolated(ctx, ticket.ID); err != nil {
				return nil, fmt.Errorf("mark ticket %s violated: %w", ticket.Number, err)
			}
			ticket.SLAViolated = true
			result.ViolationsFound++
			publishEvent(ctx, s.dispatcher, s.logger, s.now, events.Event{
				Type:     events.EventSLAViolated,
				TicketID: ticket.ID,
				Payload: events.SLAViolatedPayload{
					TicketNumber: ticket.Number,
					Requester:    ticket.Requester,
					SchoolUnit:   ticket.SchoolUnit,
					ProblemType:  ticket.ProblemType,
					OpenedAt:     ticket.OpenedAt,
					Deadline:     *ticket.SLADeadline,
				},
			})
		}

		if ticket.Priority == domain.TicketPriorityCritical && ticket.Status == domain.TicketStatusOpen {
			open := now.Sub(ticket.OpenedAt)
			if open > criticalGracePeriod {
				result.CriticalIssues++
				publishEvent(ctx, s.dispatcher, s.logger, s.now, events.Event{
					Type:     events.EventCriticalUnattended,
					TicketID: ticket.ID,
					Payload: events.CriticalUnattendedPayload{
						TicketNumber: ticket.Number,
						Requester:    ticket.Requester,
						ProblemType:  ticket.ProblemType,
						OpenedAt:     ticket.OpenedAt,
						HoursOpen:    int(open / time.Hour),
					},
				})
			}
		}
	}

	if result.ViolationsFound > 0 && s.cache != nil {
		if err := s.cache.InvalidateSummary(ctx); err != nil {
			s.logger.Warn("invalidate summary cache", zap.Error(err))
		}
	}

	s.logger.Info("sla scan finished",
		zap.Int("tickets_checked", result.TicketsChecked),
		zap.Int("violations", result.ViolationsFound),
		zap.Int("critical_issues", result.CriticalIssues))
	return result, nil
}

// Violations lists open tickets already past their deadline.
func (s *SLAService) Violations(ctx context.Context) ([]OverdueTicket, error) {
	tickets, err := s.tickets.List(ctx, repository.TicketFilter{ExcludeClosed: true})
	if err != nil {
		return nil, err
	}
	now := s.now()
	result := []OverdueTicket{}
	for _, ticket := range tickets {
		if ticket.SLADeadline == nil || !now.After(*ticket.SLADeadline) {
			continue
		}
		overdue := now.Sub(*ticket.SLADeadline).Hours()
		result = append(result, OverdueTicket{Ticket: ticket, HoursOverdue: int(math.Round(overdue))})
	}
	return result, nil
}

// AtRisk lists open tickets whose deadline is within the next four hours.
func (s *SLAService) AtRisk(ctx context.Context) ([]AtRiskTicket, error) {
	tickets, err := s.tickets.List(ctx, repository.TicketFilter{ExcludeClosed: true})
	if err != nil {
		return nil, err
	}
	now := s.now()
	horizon := now.Add(slaWarningWindow)
	result := []AtRiskTicket{}
	for _, ticket := range tickets {
		if ticket.SLADeadline == nil {
			continue
		}
		deadline := *ticket.SLADeadline
		if !deadline.After(now) || deadline.After(horizon) {
			continue
		}
		result = append(result, AtRiskTicket{Ticket: ticket, HoursRemaining: round2(deadline.Sub(now).Hours())})
	}
	return result, nil
}
