package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edutech-ops/chromebook-helpdesk/internal/domain"
	apperrors "github.com/edutech-ops/chromebook-helpdesk/pkg/util/errorutil"
)

// ErrTicketNumberTaken reports a ticket_number collision on insert.
var ErrTicketNumberTaken = errors.New("ticket number already taken")

const uniqueViolation = "23505"

// TicketFilter captures list and export filters. Zero values match everything.
type TicketFilter struct {
	Statuses      []domain.TicketStatus
	Priority      *domain.TicketPriority
	SchoolUnit    *string
	ExcludeClosed bool
}

// Matches applies the filter to an in-memory ticket.
func (f TicketFilter) Matches(ticket *domain.Ticket) bool {
	if len(f.Statuses) > 0 {
		found := false
		for _, status := range f.Statuses {
			if status == ticket.Status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Priority != nil && *f.Priority != ticket.Priority {
		return false
	}
	if f.SchoolUnit != nil && *f.SchoolUnit != ticket.SchoolUnit {
		return false
	}
	if f.ExcludeClosed && ticket.Status.Closed() {
		return false
	}
	return true
}

// StatusUpdate is the typed partial update applied on a status transition.
// Nil pointers leave the stored column untouched.
type StatusUpdate struct {
	Status            domain.TicketStatus
	Responsible       *string
	Notes             *string
	ResolvedAt        *time.Time
	ResolutionMinutes *int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	LastNumber(ctx context.Context) (string, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	UpdateStatus(ctx context.Context, id int64, update StatusUpdate) error
	MarkSLAViolated(ctx context.Context, id int64) error
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, ticket_number, solicitante, email, unidade_escolar, patrimonio_chromebook,
        numero_serie, tipo_problema, descricao_detalhada, prioridade, status, data_abertura,
        data_resolucao, responsavel_atendimento, observacoes_solucao, sla_vencido, data_limite_sla,
        tempo_atendimento_minutos, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	if r.pool == nil {
		return apperrors.ErrStoreUnavailable
	}
	const query = `
        INSERT INTO tickets (ticket_number, solicitante, email, unidade_escolar, patrimonio_chromebook,
            numero_serie, tipo_problema, descricao_detalhada, prioridade, status, data_abertura,
            sla_vencido, data_limite_sla)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
        RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		ticket.Number,
		ticket.Requester,
		ticket.Email,
		ticket.SchoolUnit,
		ticket.AssetTag,
		ticket.SerialNumber,
		ticket.ProblemType,
		ticket.Description,
		ticket.Priority,
		ticket.Status,
		ticket.OpenedAt,
		ticket.SLAViolated,
		ticket.SLADeadline,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrTicketNumberTaken
	}
	return err
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	if r.pool == nil {
		return nil, apperrors.ErrStoreUnavailable
	}
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) LastNumber(ctx context.Context) (string, error) {
	if r.pool == nil {
		return "", apperrors.ErrStoreUnavailable
	}
	const query = `
        SELECT ticket_number FROM tickets
        WHERE ticket_number ~ '^CH-[0-9]+$'
        ORDER BY substring(ticket_number FROM 4)::bigint DESC
        LIMIT 1`
	var number string
	if err := r.pool.QueryRow(ctx, query).Scan(&number); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return number, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	if r.pool == nil {
		return nil, apperrors.ErrStoreUnavailable
	}
	clauses := []string{"1=1"}
	args := []any{}

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Priority != nil {
		args = append(args, *filter.Priority)
		clauses = append(clauses, fmt.Sprintf("prioridade=$%d", len(args)))
	}
	if filter.SchoolUnit != nil {
		args = append(args, *filter.SchoolUnit)
		clauses = append(clauses, fmt.Sprintf("unidade_escolar=$%d", len(args)))
	}
	if filter.ExcludeClosed {
		clauses = append(clauses, fmt.Sprintf("status NOT IN ('%s','%s')",
			domain.TicketStatusResolved, domain.TicketStatusCancelled))
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY data_abertura ASC, id ASC`,
		ticketColumns, strings.Join(clauses, " AND "))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func (r *ticketRepository) UpdateStatus(ctx context.Context, id int64, update StatusUpdate) error {
	if r.pool == nil {
		return apperrors.ErrStoreUnavailable
	}
	const query = `
        UPDATE tickets SET status=$1,
            responsavel_atendimento=COALESCE($2, responsavel_atendimento),
            observacoes_solucao=COALESCE($3, observacoes_solucao),
            data_resolucao=COALESCE($4, data_resolucao),
            tempo_atendimento_minutos=COALESCE($5, tempo_atendimento_minutos),
            updated_at=NOW()
        WHERE id=$6`
	cmd, err := r.pool.Exec(ctx, query,
		update.Status,
		update.Responsible,
		update.Notes,
		update.ResolvedAt,
		update.ResolutionMinutes,
		id,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) MarkSLAViolated(ctx context.Context, id int64) error {
	if r.pool == nil {
		return apperrors.ErrStoreUnavailable
	}
	const query = `UPDATE tickets SET sla_vencido=TRUE, updated_at=NOW() WHERE id=$1`
	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.Number,
		&ticket.Requester,
		&ticket.Email,
		&ticket.SchoolUnit,
		&ticket.AssetTag,
		&ticket.SerialNumber,
		&ticket.ProblemType,
		&ticket.Description,
		&ticket.Priority,
		&ticket.Status,
		&ticket.OpenedAt,
		&ticket.ResolvedAt,
		&ticket.Responsible,
		&ticket.ResolutionNotes,
		&ticket.SLAViolated,
		&ticket.SLADeadline,
		&ticket.ResolutionMinutes,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}
