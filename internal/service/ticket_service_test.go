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
	"github.com/edutech-ops/chromebook-helpdesk/internal/repository"
	"github.com/edutech-ops/chromebook-helpdesk/internal/repository/memory"
	apperrors "github.com/edutech-ops/chromebook-helpdesk/pkg/util/errorutil"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type ticketFixture struct {
	svc        *TicketService
	tickets    *memory.TicketRepository
	rules      *memory.SLARuleRepository
	history    *memory.TicketHistoryRepository
	cache      *memory.ReportCache
	dispatcher events.Dispatcher
	clock      *fakeClock
	published  []events.Event
}

func newTicketFixture(t *testing.T) *ticketFixture {
	t.Helper()
	f := &ticketFixture{
		tickets:    memory.NewTicketRepository(),
		rules:      memory.NewSeededSLARuleRepository(),
		history:    memory.NewTicketHistoryRepository(),
		cache:      memory.NewReportCache(),
		dispatcher: events.NewInMemoryDispatcher(),
		clock:      &fakeClock{now: time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)},
	}
	record := func(_ context.Context, event events.Event) error {
		f.published = append(f.published, event)
		return nil
	}
	f.dispatcher.Subscribe(events.EventTicketCreated, record)
	f.dispatcher.Subscribe(events.EventTicketStatusChanged, record)
	f.svc = NewTicketService(TicketDependencies{
		TicketRepo:       f.tickets,
		SLARuleRepo:      f.rules,
		HistoryRepo:      f.history,
		Cache:            f.cache,
		Dispatcher:       f.dispatcher,
		DefaultAllowance: 24 * time.Hour,
		Now:              f.clock.Now,
	})
	return f
}

func validInput(problem domain.ProblemType) TicketCreateInput {
	return TicketCreateInput{
		Requester:   "Maria Souza",
		SchoolUnit:  "EMEF Centro",
		AssetTag:    "PAT-1001",
		ProblemType: problem,
		Description: "O equipamento não liga mesmo carregado",
	}
}

func strPtr(s string) *string { return &s }

func TestCreateTicketDerivesPriorityAndDeadline(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()

	ticket, err := f.svc.CreateTicket(ctx, validInput(domain.ProblemNoPower))
	require.NoError(t, err)

	assert.Equal(t, "CH-0001", ticket.Number)
	assert.Equal(t, domain.TicketPriorityCritical, ticket.Priority)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.False(t, ticket.SLAViolated)
	require.NotNil(t, ticket.SLADeadline)
	assert.Equal(t, f.clock.now.Add(4*time.Hour), *ticket.SLADeadline)

	wifi, err := f.svc.CreateTicket(ctx, validInput(domain.ProblemWifi))
	require.NoError(t, err)
	assert.Equal(t, "CH-0002", wifi.Number)
	assert.Equal(t, domain.TicketPriorityMedium, wifi.Priority)
	assert.Equal(t, f.clock.now.Add(48*time.Hour), *wifi.SLADeadline)

	require.Len(t, f.published, 2)
	assert.Equal(t, events.EventTicketCreated, f.published[0].Type)
	assert.NotEmpty(t, f.published[0].ID)
	assert.Equal(t, 2, f.cache.Invalidations)
}

func TestCreateTicketDeadlineFollowsRuleForEveryProblemType(t *testing.T) {
	hours := map[domain.ProblemType]int{}
	for _, rule := range memory.NewSeededSLARuleRepository().Rules {
		hours[rule.ProblemType] = rule.Hours
	}

	for _, problem := range domain.ProblemTypes {
		t.Run(string(problem), func(t *testing.T) {
			f := newTicketFixture(t)
			allowance, ok := hours[problem]
			require.True(t, ok)

			ticket, err := f.svc.CreateTicket(context.Background(), validInput(problem))
			require.NoError(t, err)
			assert.Equal(t, domain.PriorityFor(problem), ticket.Priority)
			require.NotNil(t, ticket.SLADeadline)
			assert.Equal(t, f.clock.now.Add(time.Duration(allowance)*time.Hour), *ticket.SLADeadline)
		})
	}
}

func TestCreateTicketFallsBackToDefaultAllowance(t *testing.T) {
	f := newTicketFixture(t)
	f.rules.Rules = nil

	ticket, err := f.svc.CreateTicket(context.Background(), validInput(domain.ProblemBrokenScreen))
	require.NoError(t, err)
	assert.Equal(t, domain.TicketPriorityHigh, ticket.Priority)
	assert.Equal(t, f.clock.now.Add(24*time.Hour), *ticket.SLADeadline)
}

func TestCreateTicketNumbersIncrease(t *testing.T) {
	f := newTicketFixture(t)
	f.tickets.Put(domain.Ticket{Number: "CH-0041", Status: domain.TicketStatusResolved})

	ticket, err := f.svc.CreateTicket(context.Background(), validInput(domain.ProblemOther))
	require.NoError(t, err)
	assert.Equal(t, "CH-0042", ticket.Number)
}

func TestCreateTicketNumbersFollowHighestSuffix(t *testing.T) {
	f := newTicketFixture(t)
	f.tickets.Put(domain.Ticket{Number: "CH-0041", Status: domain.TicketStatusOpen})
	f.tickets.Put(domain.Ticket{Number: "CH-0007", Status: domain.TicketStatusOpen})

	ticket, err := f.svc.CreateTicket(context.Background(), validInput(domain.ProblemOther))
	require.NoError(t, err)
	assert.Equal(t, "CH-0042", ticket.Number)
}

// staleNumbers reports an outdated last number for the first Stale calls, as a
// concurrent create would.
type staleNumbers struct {
	*memory.TicketRepository
	Stale int
	calls int
}

func (r *staleNumbers) LastNumber(ctx context.Context) (string, error) {
	r.calls++
	if r.calls <= r.Stale {
		return "", nil
	}
	return r.TicketRepository.LastNumber(ctx)
}

func TestCreateTicketRetriesTakenNumber(t *testing.T) {
	f := newTicketFixture(t)
	f.tickets.Put(domain.Ticket{Number: "CH-0001", Status: domain.TicketStatusOpen})
	repo := &staleNumbers{TicketRepository: f.tickets, Stale: 1}
	svc := NewTicketService(TicketDependencies{TicketRepo: repo, SLARuleRepo: f.rules, HistoryRepo: f.history, Now: f.clock.Now})

	ticket, err := svc.CreateTicket(context.Background(), validInput(domain.ProblemOther))
	require.NoError(t, err)
	assert.Equal(t, "CH-0002", ticket.Number)
	assert.Equal(t, 2, repo.calls)
}

func TestCreateTicketConflictAfterRepeatedCollisions(t *testing.T) {
	f := newTicketFixture(t)
	f.tickets.Put(domain.Ticket{Number: "CH-0001", Status: domain.TicketStatusOpen})
	repo := &staleNumbers{TicketRepository: f.tickets, Stale: maxNumberAttempts}
	svc := NewTicketService(TicketDependencies{TicketRepo: repo, SLARuleRepo: f.rules, HistoryRepo: f.history, Now: f.clock.Now})

	_, err := svc.CreateTicket(context.Background(), validInput(domain.ProblemOther))
	require.Error(t, err)
	domainErr := apperrors.ToDomainError(err)
	assert.Equal(t, "CONFLICT", domainErr.Code)
	assert.Equal(t, 409, domainErr.HTTPStatus)
}

func TestCreateTicketValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*TicketCreateInput)
		field  string
	}{
		{"missing requester", func(in *TicketCreateInput) { in.Requester = "  " }, "solicitante"},
		{"missing unit", func(in *TicketCreateInput) { in.SchoolUnit = "" }, "unidadeEscolar"},
		{"missing asset tag", func(in *TicketCreateInput) { in.AssetTag = "" }, "patrimonioChromebook"},
		{"unknown problem", func(in *TicketCreateInput) { in.ProblemType = "explodiu" }, "tipoProblema"},
		{"short description", func(in *TicketCreateInput) { in.Description = "quebrou" }, "descricaoDetalhada"},
		{"bad email", func(in *TicketCreateInput) { in.Email = strPtr("not-an-email") }, "email"},
		{"display name email", func(in *TicketCreateInput) { in.Email = strPtr("Maria <maria@escola.org>") }, "email"},
		{"email without tld", func(in *TicketCreateInput) { in.Email = strPtr("maria@escola") }, "email"},
		{"email with trailing dot", func(in *TicketCreateInput) { in.Email = strPtr("maria@escola.") }, "email"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newTicketFixture(t)
			input := validInput(domain.ProblemKeyboard)
			tc.mutate(&input)

			_, err := f.svc.CreateTicket(context.Background(), input)
			require.Error(t, err)
			var domainErr *apperrors.DomainError
			require.True(t, errors.As(err, &domainErr))
			assert.Equal(t, "VALIDATION_FAILED", domainErr.Code)
			assert.Equal(t, tc.field, domainErr.Details["field"])
			assert.Empty(t, f.published)
		})
	}
}

func TestValidEmail(t *testing.T) {
	assert.True(t, validEmail("maria@escola.org"))
	assert.True(t, validEmail("ti.suporte@sme.sp.gov.br"))
	assert.False(t, validEmail("Maria <maria@escola.org>"))
	assert.False(t, validEmail("<maria@escola.org>"))
	assert.False(t, validEmail("maria@escola"))
	assert.False(t, validEmail("maria"))
}

func TestCreateTicketAcceptsBlankOptionalEmail(t *testing.T) {
	f := newTicketFixture(t)
	input := validInput(domain.ProblemKeyboard)
	input.Email = strPtr("   ")

	ticket, err := f.svc.CreateTicket(context.Background(), input)
	require.NoError(t, err)
	assert.Nil(t, ticket.Email)
}

func TestCreateTicketStoreUnavailable(t *testing.T) {
	f := newTicketFixture(t)
	f.tickets.Err = apperrors.ErrStoreUnavailable

	_, err := f.svc.CreateTicket(context.Background(), validInput(domain.ProblemKeyboard))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrStoreUnavailable)
	assert.Equal(t, "STORE_UNAVAILABLE", apperrors.ToDomainError(err).Code)
}

func TestUpdateStatusResolvesOnce(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()
	ticket, err := f.svc.CreateTicket(ctx, validInput(domain.ProblemKeyboard))
	require.NoError(t, err)

	f.clock.Advance(90*time.Minute + 30*time.Second)
	resolved, err := f.svc.UpdateStatus(ctx, ticket.ID, StatusChangeInput{
		Status:      domain.TicketStatusResolved,
		Responsible: "Técnico João",
		Notes:       strPtr("Teclado substituído"),
	})
	require.NoError(t, err)
	require.NotNil(t, resolved.ResolutionMinutes)
	assert.Equal(t, 90, *resolved.ResolutionMinutes)
	require.NotNil(t, resolved.ResolvedAt)
	firstResolvedAt := *resolved.ResolvedAt

	f.clock.Advance(time.Hour)
	again, err := f.svc.UpdateStatus(ctx, ticket.ID, StatusChangeInput{
		Status:      domain.TicketStatusResolved,
		Responsible: "Técnico João",
	})
	require.NoError(t, err)
	assert.Equal(t, 90, *again.ResolutionMinutes)
	assert.Equal(t, firstResolvedAt, *again.ResolvedAt)
	assert.Equal(t, "Teclado substituído", *again.ResolutionNotes)

	history, err := f.svc.ListHistory(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.TicketStatusOpen, *history[0].PreviousStatus)
	assert.Equal(t, domain.TicketStatusResolved, history[0].NewStatus)
	assert.Equal(t, "Técnico João", history[0].Responsible)
	assert.Equal(t, domain.TicketStatusResolved, *history[1].PreviousStatus)
}

func TestUpdateStatusNonResolvingLeavesStampsUnset(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()
	ticket, err := f.svc.CreateTicket(ctx, validInput(domain.ProblemCharger))
	require.NoError(t, err)

	updated, err := f.svc.UpdateStatus(ctx, ticket.ID, StatusChangeInput{
		Status:      domain.TicketStatusAwaitingPart,
		Responsible: "Ana",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusAwaitingPart, updated.Status)
	assert.Nil(t, updated.ResolvedAt)
	assert.Nil(t, updated.ResolutionMinutes)

	require.Len(t, f.published, 2)
	payload, ok := f.published[1].Payload.(events.TicketStatusChangedPayload)
	require.True(t, ok)
	assert.Equal(t, domain.TicketStatusOpen, payload.OldStatus)
	assert.Equal(t, domain.TicketStatusAwaitingPart, payload.NewStatus)
}

func TestUpdateStatusErrors(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()
	ticket, err := f.svc.CreateTicket(ctx, validInput(domain.ProblemCharger))
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, ticket.ID, StatusChangeInput{Status: domain.TicketStatusInAnalysis, Responsible: " "})
	assert.Equal(t, "VALIDATION_FAILED", apperrors.ToDomainError(err).Code)

	_, err = f.svc.UpdateStatus(ctx, ticket.ID, StatusChangeInput{Status: "fechado", Responsible: "Ana"})
	assert.Equal(t, "VALIDATION_FAILED", apperrors.ToDomainError(err).Code)

	_, err = f.svc.UpdateStatus(ctx, 999, StatusChangeInput{Status: domain.TicketStatusInAnalysis, Responsible: "Ana"})
	assert.True(t, apperrors.IsNotFound(err))

	history, err := f.svc.ListHistory(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestGetTicketNotFound(t *testing.T) {
	f := newTicketFixture(t)
	_, err := f.svc.GetTicket(context.Background(), 7)
	assert.True(t, apperrors.IsNotFound(err))
	assert.Equal(t, 404, apperrors.ToDomainError(err).HTTPStatus)
}

func TestListTicketsFilters(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()
	_, err := f.svc.CreateTicket(ctx, validInput(domain.ProblemNoPower))
	require.NoError(t, err)
	other := validInput(domain.ProblemWifi)
	other.SchoolUnit = "EMEF Norte"
	_, err = f.svc.CreateTicket(ctx, other)
	require.NoError(t, err)

	critical := domain.TicketPriorityCritical
	list, err := f.svc.ListTickets(ctx, repository.TicketFilter{Priority: &critical})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.ProblemNoPower, list[0].ProblemType)

	unit := "EMEF Norte"
	list, err = f.svc.ListTickets(ctx, repository.TicketFilter{SchoolUnit: &unit})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "EMEF Norte", list[0].SchoolUnit)
}

func TestStats(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()

	empty, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, empty.Total)
	assert.Zero(t, empty.ResolutionRate)
	assert.Zero(t, empty.AverageResolutionMins)

	base := f.clock.now
	minutes := func(n int) *int { return &n }
	f.tickets.Put(domain.Ticket{Status: domain.TicketStatusResolved, OpenedAt: base, ResolutionMinutes: minutes(30)})
	f.tickets.Put(domain.Ticket{Status: domain.TicketStatusResolved, OpenedAt: base, ResolutionMinutes: minutes(61), SLAViolated: true})
	f.tickets.Put(domain.Ticket{Status: domain.TicketStatusOpen, OpenedAt: base, SLAViolated: true})

	stats, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Open)
	assert.Equal(t, 2, stats.Resolved)
	assert.Equal(t, 1, stats.Late)
	assert.Equal(t, 46, stats.AverageResolutionMins)
	assert.Equal(t, 66.67, stats.ResolutionRate)
}

func TestStatsAverageSkipsReopenedTickets(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()
	ticket, err := f.svc.CreateTicket(ctx, validInput(domain.ProblemKeyboard))
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)
	_, err = f.svc.UpdateStatus(ctx, ticket.ID, StatusChangeInput{Status: domain.TicketStatusResolved, Responsible: "Ana"})
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, ticket.ID, StatusChangeInput{Status: domain.TicketStatusOpen, Responsible: "Ana"})
	require.NoError(t, err)

	stats, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Resolved)
	assert.Zero(t, stats.AverageResolutionMins)
}

func TestStatsAverageSkipsZeroMinuteResolutions(t *testing.T) {
	f := newTicketFixture(t)
	minutes := func(n int) *int { return &n }
	f.tickets.Put(domain.Ticket{Status: domain.TicketStatusResolved, OpenedAt: f.clock.now, ResolutionMinutes: minutes(0)})
	f.tickets.Put(domain.Ticket{Status: domain.TicketStatusResolved, OpenedAt: f.clock.now, ResolutionMinutes: minutes(100)})

	stats, err := f.svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Resolved)
	assert.Equal(t, 100, stats.AverageResolutionMins)
}

func TestListSLARules(t *testing.T) {
	f := newTicketFixture(t)
	rules, err := f.svc.ListSLARules(context.Background())
	require.NoError(t, err)
	assert.Len(t, rules, 10)
}
