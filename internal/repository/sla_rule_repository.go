package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edutech-ops/chromebook-helpdesk/internal/domain"
	apperrors "github.com/edutech-ops/chromebook-helpdesk/pkg/util/errorutil"
)

// SLARuleRepository reads the per-problem-type deadline table.
type SLARuleRepository interface {
	List(ctx context.Context) ([]domain.SLARule, error)
	GetByProblemType(ctx context.Context, problem domain.ProblemType) (*domain.SLARule, error)
}

type slaRuleRepository struct {
	pool *pgxpool.Pool
}

func NewSLARuleRepository(pool *pgxpool.Pool) SLARuleRepository {
	return &slaRuleRepository{pool: pool}
}

const slaRuleColumns = `id, tipo_problema, prioridade, prazo_horas, created_at, updated_at`

func (r *slaRuleRepository) List(ctx context.Context) ([]domain.SLARule, error) {
	if r.pool == nil {
		return nil, apperrors.ErrStoreUnavailable
	}
	rows, err := r.pool.Query(ctx, `SELECT `+slaRuleColumns+` FROM sla_rules ORDER BY prazo_horas ASC, tipo_problema ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SLARule
	for rows.Next() {
		var rule domain.SLARule
		if err := rows.Scan(&rule.ID, &rule.ProblemType, &rule.Priority, &rule.Hours, &rule.CreatedAt, &rule.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, rule)
	}
	return result, rows.Err()
}

// GetByProblemType returns pgx.ErrNoRows when no rule is configured.
func (r *slaRuleRepository) GetByProblemType(ctx context.Context, problem domain.ProblemType) (*domain.SLARule, error) {
	if r.pool == nil {
		return nil, apperrors.ErrStoreUnavailable
	}
	var rule domain.SLARule
	if err := r.pool.QueryRow(ctx, `SELECT `+slaRuleColumns+` FROM sla_rules WHERE tipo_problema=$1`, problem).Scan(
		&rule.ID,
		&rule.ProblemType,
		&rule.Priority,
		&rule.Hours,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &rule, nil
}
