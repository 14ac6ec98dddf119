package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edutech-ops/chromebook-helpdesk/internal/domain"
	apperrors "github.com/edutech-ops/chromebook-helpdesk/pkg/util/errorutil"
)

// TicketHistoryRepository stores status transition entries. Entries are never updated.
type TicketHistoryRepository interface {
	Create(ctx context.Context, history *domain.TicketHistory) error
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.TicketHistory, error)
}

type ticketHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewTicketHistoryRepository builds repository.
func NewTicketHistoryRepository(pool *pgxpool.Pool) TicketHistoryRepository {
	return &ticketHistoryRepository{pool: pool}
}

func (r *ticketHistoryRepository) Create(ctx context.Context, history *domain.TicketHistory) error {
	if r.pool == nil {
		return apperrors.ErrStoreUnavailable
	}
	const query = `
        INSERT INTO ticket_history (ticket_id, status_anterior, status_novo, responsavel, observacoes, data_alteracao)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id`
	return r.pool.QueryRow(ctx, query,
		history.TicketID,
		history.PreviousStatus,
		history.NewStatus,
		history.Responsible,
		history.Notes,
		history.ChangedAt,
	).Scan(&history.ID)
}

func (r *ticketHistoryRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.TicketHistory, error) {
	if r.pool == nil {
		return nil, apperrors.ErrStoreUnavailable
	}
	const query = `
        SELECT id, ticket_id, status_anterior, status_novo, responsavel, observacoes, data_alteracao
        FROM ticket_history WHERE ticket_id=$1 ORDER BY data_alteracao ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketHistory
	for rows.Next() {
		var history domain.TicketHistory
		if err := rows.Scan(
			&history.ID,
			&history.TicketID,
			&history.PreviousStatus,
			&history.NewStatus,
			&history.Responsible,
			&history.Notes,
			&history.ChangedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, history)
	}
	return result, rows.Err()
}
