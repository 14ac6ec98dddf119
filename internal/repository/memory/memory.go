// Package memory provides in-memory repository implementations used by
// service and handler tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/edutech-ops/chromebook-helpdesk/internal/domain"
	"github.com/edutech-ops/chromebook-helpdesk/internal/repository"
)

// TicketRepository keeps tickets in a map keyed by id.
type TicketRepository struct {
	mu      sync.Mutex
	nextID  int64
	tickets map[int64]domain.Ticket
	// Err, when set, is returned by every call.
	Err error
}

func NewTicketRepository() *TicketRepository {
	return &TicketRepository{tickets: map[int64]domain.Ticket{}}
}

func (r *TicketRepository) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	for _, existing := range r.tickets {
		if existing.Number == ticket.Number {
			return repository.ErrTicketNumberTaken
		}
	}
	r.nextID++
	ticket.ID = r.nextID
	ticket.CreatedAt = ticket.OpenedAt
	ticket.UpdatedAt = ticket.OpenedAt
	r.tickets[ticket.ID] = *ticket
	return nil
}

// Put stores a ticket as-is, assigning an id when missing.
func (r *TicketRepository) Put(ticket domain.Ticket) domain.Ticket {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ticket.ID == 0 {
		r.nextID++
		ticket.ID = r.nextID
	} else if ticket.ID > r.nextID {
		r.nextID = ticket.ID
	}
	r.tickets[ticket.ID] = ticket
	return ticket
}

func (r *TicketRepository) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &ticket, nil
}

func (r *TicketRepository) LastNumber(_ context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return "", r.Err
	}
	last, highest := "", 0
	for _, ticket := range r.tickets {
		if seq := domain.ParseTicketNumber(ticket.Number); seq > highest {
			last, highest = ticket.Number, seq
		}
	}
	return last, nil
}

func (r *TicketRepository) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	var result []domain.Ticket
	for _, ticket := range r.tickets {
		if filter.Matches(&ticket) {
			result = append(result, ticket)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].OpenedAt.Equal(result[j].OpenedAt) {
			return result[i].OpenedAt.Before(result[j].OpenedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (r *TicketRepository) UpdateStatus(_ context.Context, id int64, update repository.StatusUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	ticket, ok := r.tickets[id]
	if !ok {
		return pgx.ErrNoRows
	}
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
	r.tickets[id] = ticket
	return nil
}

func (r *TicketRepository) MarkSLAViolated(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	ticket, ok := r.tickets[id]
	if !ok {
		return pgx.ErrNoRows
	}
	ticket.SLAViolated = true
	r.tickets[id] = ticket
	return nil
}

// SLARuleRepository serves a fixed rule set.
type SLARuleRepository struct {
	Rules []domain.SLARule
	Err   error
}

// NewSeededSLARuleRepository returns the rules installed by the seed migration.
func NewSeededSLARuleRepository() *SLARuleRepository {
	seed := []struct {
		problem  domain.ProblemType
		priority domain.TicketPriority
		hours    int
	}{
		{domain.ProblemNoPower, domain.TicketPriorityCritical, 4},
		{domain.ProblemBrokenScreen, domain.TicketPriorityHigh, 8},
		{domain.ProblemNoImage, domain.TicketPriorityHigh, 8},
		{domain.ProblemKeyboard, domain.TicketPriorityMedium, 24},
		{domain.ProblemTouchpad, domain.TicketPriorityMedium, 24},
		{domain.ProblemBattery, domain.TicketPriorityMedium, 24},
		{domain.ProblemCharger, domain.TicketPriorityMedium, 24},
		{domain.ProblemSystemFreezing, domain.TicketPriorityMedium, 24},
		{domain.ProblemWifi, domain.TicketPriorityLow, 48},
		{domain.ProblemOther, domain.TicketPriorityLow, 48},
	}
	repo := &SLARuleRepository{}
	for i, s := range seed {
		repo.Rules = append(repo.Rules, domain.SLARule{
			ID:          int64(i + 1),
			ProblemType: s.problem,
			Priority:    s.priority,
			Hours:       s.hours,
		})
	}
	return repo
}

func (r *SLARuleRepository) List(_ context.Context) ([]domain.SLARule, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	return append([]domain.SLARule{}, r.Rules...), nil
}

func (r *SLARuleRepository) GetByProblemType(_ context.Context, problem domain.ProblemType) (*domain.SLARule, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	for _, rule := range r.Rules {
		if rule.ProblemType == problem {
			rule := rule
			return &rule, nil
		}
	}
	return nil, pgx.ErrNoRows
}

// TicketHistoryRepository appends history entries in memory.
type TicketHistoryRepository struct {
	mu      sync.Mutex
	entries []domain.TicketHistory
}

func NewTicketHistoryRepository() *TicketHistoryRepository {
	return &TicketHistoryRepository{}
}

func (r *TicketHistoryRepository) Create(_ context.Context, history *domain.TicketHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	history.ID = int64(len(r.entries) + 1)
	r.entries = append(r.entries, *history)
	return nil
}

func (r *TicketHistoryRepository) ListByTicket(_ context.Context, ticketID int64) ([]domain.TicketHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := []domain.TicketHistory{}
	for _, entry := range r.entries {
		if entry.TicketID == ticketID {
			result = append(result, entry)
		}
	}
	return result, nil
}

// OperatorRepository keys operators by lowercase email.
type OperatorRepository struct {
	mu        sync.Mutex
	nextID    int64
	operators map[string]domain.Operator
	Err       error
}

func NewOperatorRepository() *OperatorRepository {
	return &OperatorRepository{operators: map[string]domain.Operator{}}
}

func (r *OperatorRepository) Upsert(_ context.Context, operator *domain.Operator) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	key := strings.ToLower(operator.Email)
	if existing, ok := r.operators[key]; ok {
		operator.ID = existing.ID
		operator.CreatedAt = existing.CreatedAt
	} else {
		r.nextID++
		operator.ID = r.nextID
		operator.CreatedAt = time.Now()
	}
	operator.UpdatedAt = time.Now()
	r.operators[key] = *operator
	return nil
}

func (r *OperatorRepository) GetByID(_ context.Context, id int64) (*domain.Operator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	for _, operator := range r.operators {
		if operator.ID == id {
			return &operator, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *OperatorRepository) GetByEmail(_ context.Context, email string) (*domain.Operator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	operator, ok := r.operators[strings.ToLower(email)]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &operator, nil
}

func (r *OperatorRepository) TouchLastSignedIn(_ context.Context, id int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	for key, operator := range r.operators {
		if operator.ID == id {
			operator.LastSignedIn = &at
			r.operators[key] = operator
			return nil
		}
	}
	return pgx.ErrNoRows
}

// ReportCache is a map-backed summary cache that ignores TTLs.
type ReportCache struct {
	mu            sync.Mutex
	payload       []byte
	Invalidations int
}

func NewReportCache() *ReportCache {
	return &ReportCache{}
}

func (c *ReportCache) GetSummary(_ context.Context) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.payload == nil {
		return nil, false, nil
	}
	return c.payload, true, nil
}

func (c *ReportCache) SetSummary(_ context.Context, payload []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payload = payload
	return nil
}

func (c *ReportCache) InvalidateSummary(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payload = nil
	c.Invalidations++
	return nil
}

var (
	_ repository.TicketRepository        = (*TicketRepository)(nil)
	_ repository.SLARuleRepository       = (*SLARuleRepository)(nil)
	_ repository.TicketHistoryRepository = (*TicketHistoryRepository)(nil)
	_ repository.OperatorRepository      = (*OperatorRepository)(nil)
	_ repository.ReportCache             = (*ReportCache)(nil)
)
