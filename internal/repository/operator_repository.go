package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldforcemrser2026/syntoniqa/internal/domain"
)

// OperatorRepository looks up operators for login and token validation.
// Create exists only for the bootstrap admin seed; operator management is
// otherwise out of band.
type OperatorRepository interface {
	Create(ctx context.Context, op *domain.Operator) error
	GetByID(ctx context.Context, id string) (*domain.Operator, error)
	GetByEmail(ctx context.Context, email string) (*domain.Operator, error)
	Count(ctx context.Context) (int64, error)
}

type operatorRepository struct {
	pool *pgxpool.Pool
}

// NewOperatorRepository instantiates repository.
func NewOperatorRepository(pool *pgxpool.Pool) OperatorRepository {
	return &operatorRepository{pool: pool}
}

const operatorColumns = `id, tenant_id, name, email, password_hash, role, active, created_at`

func (r *operatorRepository) Create(ctx context.Context, op *domain.Operator) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO operators (`+operatorColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		op.ID, op.TenantID, op.Name, op.Email, op.PasswordHash,
		op.Role, op.Active, op.CreatedAt,
	)
	return err
}

func (r *operatorRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM operators`).Scan(&count)
	return count, err
}

func (r *operatorRepository) GetByID(ctx context.Context, id string) (*domain.Operator, error) {
	return r.fetch(ctx, "SELECT "+operatorColumns+" FROM operators WHERE id=$1", id)
}

func (r *operatorRepository) GetByEmail(ctx context.Context, email string) (*domain.Operator, error) {
	return r.fetch(ctx, "SELECT "+operatorColumns+" FROM operators WHERE email=$1", email)
}

func (r *operatorRepository) fetch(ctx context.Context, query string, arg any) (*domain.Operator, error) {
	var op domain.Operator
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&op.ID, &op.TenantID, &op.Name, &op.Email, &op.PasswordHash,
		&op.Role, &op.Active, &op.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &op, nil
}
