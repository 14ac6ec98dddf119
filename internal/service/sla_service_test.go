package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edutech-ops/chromebook-helpdesk/internal/domain"
	"github.com/edutech-ops/chromebook-helpdesk/internal/events"
	"github.com/edutech-ops/chromebook-helpdesk/internal/repository/memory"
)

func deadlineTicket(now time.Time, remaining time.Duration) *domain.Ticket {
	deadline := now.Add(remaining)
	return &domain.Ticket{SLADeadline: &deadline}
}

func TestStatusFor(t *testing.T) {
	now := time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)

	unknown := StatusFor(&domain.Ticket{}, now)
	assert.Equal(t, domain.SLAStateUnknown, unknown.State)
	assert.Nil(t, unknown.HoursRemaining)

	cases := []struct {
		remaining time.Duration
		state     domain.SLAState
		hours     float64
	}{
		{-2 * time.Hour, domain.SLAStateViolated, 0},
		{0, domain.SLAStateViolated, 0},
		{30 * time.Minute, domain.SLAStateCritical, 0.5},
		{time.Hour, domain.SLAStateCritical, 1},
		{time.Hour + time.Minute, domain.SLAStateWarning, 1.02},
		{4 * time.Hour, domain.SLAStateWarning, 4},
		{4*time.Hour + time.Second, domain.SLAStateOK, 4},
		{48 * time.Hour, domain.SLAStateOK, 48},
	}
	for _, tc := range cases {
		status := StatusFor(deadlineTicket(now, tc.remaining), now)
		assert.Equal(t, tc.state, status.State, tc.remaining.String())
		require.NotNil(t, status.HoursRemaining, tc.remaining.String())
		assert.Equal(t, tc.hours, *status.HoursRemaining, tc.remaining.String())
		assert.NotEmpty(t, status.Message)
	}
}

type slaFixture struct {
	svc       *SLAService
	tickets   *memory.TicketRepository
	cache     *memory.ReportCache
	clock     *fakeClock
	published []events.Event
}

func newSLAFixture(t *testing.T) *slaFixture {
	t.Helper()
	f := &slaFixture{
		tickets: memory.NewTicketRepository(),
		cache:   memory.NewReportCache(),
		clock:   &fakeClock{now: time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)},
	}
	dispatcher := events.NewInMemoryDispatcher()
	record := func(_ context.Context, event events.Event) error {
		f.published = append(f.published, event)
		return nil
	}
	dispatcher.Subscribe(events.EventSLAViolated, record)
	dispatcher.Subscribe(events.EventCriticalUnattended, record)
	f.svc = NewSLAService(SLADependencies{
		TicketRepo: f.tickets,
		Cache:      f.cache,
		Dispatcher: dispatcher,
		Now:        f.clock.Now,
	})
	return f
}

func (f *slaFixture) put(number string, status domain.TicketStatus, priority domain.TicketPriority, openedAgo, deadlineIn time.Duration) domain.Ticket {
	deadline := f.clock.now.Add(deadlineIn)
	return f.tickets.Put(domain.Ticket{
		Number:      number,
		Requester:   "Carlos",
		SchoolUnit:  "EMEF Sul",
		ProblemType: domain.ProblemNoPower,
		Status:      status,
		Priority:    priority,
		OpenedAt:    f.clock.now.Add(-openedAgo),
		SLADeadline: &deadline,
	})
}

func TestScanViolationsFlagsNewlyOverdueTickets(t *testing.T) {
	f := newSLAFixture(t)
	ctx := context.Background()

	overdue := f.put("CH-0001", domain.TicketStatusInAnalysis, domain.TicketPriorityMedium, 30*time.Hour, -6*time.Hour)
	f.put("CH-0002", domain.TicketStatusOpen, domain.TicketPriorityMedium, time.Hour, 23*time.Hour)
	f.put("CH-0003", domain.TicketStatusResolved, domain.TicketPriorityMedium, 30*time.Hour, -6*time.Hour)
	unattended := f.put("CH-0004", domain.TicketStatusOpen, domain.TicketPriorityCritical, 3*time.Hour, time.Hour)
	f.put("CH-0005", domain.TicketStatusCancelled, domain.TicketPriorityCritical, 30*time.Hour, -6*time.Hour)

	result, err := f.svc.ScanViolations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, result.TicketsChecked)
	assert.Equal(t, 1, result.ViolationsFound)
	assert.Equal(t, 1, result.CriticalIssues)

	stored, err := f.tickets.GetByID(ctx, overdue.ID)
	require.NoError(t, err)
	assert.True(t, stored.SLAViolated)

	resolved, err := f.tickets.GetByID(ctx, 3)
	require.NoError(t, err)
	assert.False(t, resolved.SLAViolated)

	require.Len(t, f.published, 2)
	assert.Equal(t, events.EventSLAViolated, f.published[0].Type)
	assert.Equal(t, overdue.ID, f.published[0].TicketID)
	assert.Equal(t, events.EventCriticalUnattended, f.published[1].Type)
	payload := f.published[1].Payload.(events.CriticalUnattendedPayload)
	assert.Equal(t, unattended.Number, payload.TicketNumber)
	assert.Equal(t, 3, payload.HoursOpen)
	assert.Equal(t, 1, f.cache.Invalidations)

	again, err := f.svc.ScanViolations(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.ViolationsFound)
	assert.Equal(t, 1, again.CriticalIssues)
}

func TestScanViolationsCriticalWithinGracePeriod(t *testing.T) {
	f := newSLAFixture(t)
	f.put("CH-0001", domain.TicketStatusOpen, domain.TicketPriorityCritical, 2*time.Hour, 2*time.Hour)
	f.put("CH-0002", domain.TicketStatusInMaintenance, domain.TicketPriorityCritical, 5*time.Hour, time.Hour)

	result, err := f.svc.ScanViolations(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.CriticalIssues)
	assert.Zero(t, f.cache.Invalidations)
	assert.Empty(t, f.published)
}

func TestScanViolationsStoreError(t *testing.T) {
	f := newSLAFixture(t)
	f.tickets.Err = errors.New("connection refused")

	_, err := f.svc.ScanViolations(context.Background())
	require.Error(t, err)
}

func TestViolationsAndAtRisk(t *testing.T) {
	f := newSLAFixture(t)
	ctx := context.Background()

	f.put("CH-0001", domain.TicketStatusOpen, domain.TicketPriorityMedium, 30*time.Hour, -(5*time.Hour + 40*time.Minute))
	f.put("CH-0002", domain.TicketStatusOpen, domain.TicketPriorityHigh, 5*time.Hour, 3*time.Hour+15*time.Minute)
	f.put("CH-0003", domain.TicketStatusOpen, domain.TicketPriorityLow, time.Hour, 47*time.Hour)
	f.put("CH-0004", domain.TicketStatusCancelled, domain.TicketPriorityLow, 60*time.Hour, -12*time.Hour)

	violations, err := f.svc.Violations(ctx)
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, "CH-0001", violations[0].Ticket.Number)
	assert.Equal(t, 6, violations[0].HoursOverdue)

	atRisk, err := f.svc.AtRisk(ctx)
	require.NoError(t, err)
	require.Len(t, atRisk, 1)
	assert.Equal(t, "CH-0002", atRisk[0].Ticket.Number)
	assert.Equal(t, 3.25, atRisk[0].HoursRemaining)
}

func TestEvaluateUsesServiceClock(t *testing.T) {
	f := newSLAFixture(t)
	ticket := deadlineTicket(f.clock.now, 90*time.Minute)
	assert.Equal(t, domain.SLAStateWarning, f.svc.Evaluate(ticket).State)

	f.clock.Advance(time.Hour)
	assert.Equal(t, domain.SLAStateCritical, f.svc.Evaluate(ticket).State)
}
