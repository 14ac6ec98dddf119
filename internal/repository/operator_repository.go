package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edutech-ops/chromebook-helpdesk/internal/domain"
	apperrors "github.com/edutech-ops/chromebook-helpdesk/pkg/util/errorutil"
)

// OperatorRepository defines persistence access for help-desk staff.
type OperatorRepository interface {
	Upsert(ctx context.Context, operator *domain.Operator) error
	GetByID(ctx context.Context, id int64) (*domain.Operator, error)
	GetByEmail(ctx context.Context, email string) (*domain.Operator, error)
	TouchLastSignedIn(ctx context.Context, id int64, at time.Time) error
}

type operatorRepository struct {
	pool *pgxpool.Pool
}

// NewOperatorRepository returns a Postgres-backed implementation.
func NewOperatorRepository(pool *pgxpool.Pool) OperatorRepository {
	return &operatorRepository{pool: pool}
}

const operatorColumns = `id, name, email, password_hash, role, last_signed_in, created_at, updated_at`

func (r *operatorRepository) Upsert(ctx context.Context, operator *domain.Operator) error {
	if r.pool == nil {
		return apperrors.ErrStoreUnavailable
	}
	const query = `
        INSERT INTO operators (name, email, password_hash, role)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (email) DO UPDATE SET name=EXCLUDED.name, password_hash=EXCLUDED.password_hash,
            role=EXCLUDED.role, updated_at=NOW()
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		operator.Name,
		operator.Email,
		operator.PasswordHash,
		operator.Role,
	).Scan(&operator.ID, &operator.CreatedAt, &operator.UpdatedAt)
}

func (r *operatorRepository) GetByID(ctx context.Context, id int64) (*domain.Operator, error) {
	if r.pool == nil {
		return nil, apperrors.ErrStoreUnavailable
	}
	return r.fetchSingle(ctx, `SELECT `+operatorColumns+` FROM operators WHERE id=$1`, id)
}

func (r *operatorRepository) GetByEmail(ctx context.Context, email string) (*domain.Operator, error) {
	if r.pool == nil {
		return nil, apperrors.ErrStoreUnavailable
	}
	return r.fetchSingle(ctx, `SELECT `+operatorColumns+` FROM operators WHERE LOWER(email)=LOWER($1)`, email)
}

func (r *operatorRepository) TouchLastSignedIn(ctx context.Context, id int64, at time.Time) error {
	if r.pool == nil {
		return apperrors.ErrStoreUnavailable
	}
	_, err := r.pool.Exec(ctx, `UPDATE operators SET last_signed_in=$1, updated_at=NOW() WHERE id=$2`, at, id)
	return err
}

func (r *operatorRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Operator, error) {
	var operator domain.Operator
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&operator.ID,
		&operator.Name,
		&operator.Email,
		&operator.PasswordHash,
		&operator.Role,
		&operator.LastSignedIn,
		&operator.CreatedAt,
		&operator.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &operator, nil
}
