package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldforcemrser2026/syntoniqa/internal/domain"
)

// InterventionFilter captures listing parameters for planned visits.
type InterventionFilter struct {
	States       []domain.InterventionState
	TechnicianID *string
	LinkedTicket *string
	DateFrom     *time.Time
	DateTo       *time.Time
	Limit        int
	Offset       int
}

// InterventionRepository encapsulates intervention persistence.
type InterventionRepository interface {
	Create(ctx context.Context, iv *domain.Intervention) error
	Update(ctx context.Context, iv *domain.Intervention) error
	GetByID(ctx context.Context, id string) (*domain.Intervention, error)
	ListWithFilter(ctx context.Context, filter InterventionFilter) ([]domain.Intervention, error)
	ListPlannedStartingBefore(ctx context.Context, cutoff time.Time) ([]domain.Intervention, error)
}

type interventionRepository struct {
	pool *pgxpool.Pool
}

// NewInterventionRepository instantiates repository.
func NewInterventionRepository(pool *pgxpool.Pool) InterventionRepository {
	return &interventionRepository{pool: pool}
}

const interventionColumns = `id, tenant_id, linked_ticket, technician, client_id, state,
	scheduled_date, scheduled_start, notes, completed_at, created_at, updated_at`

func (r *interventionRepository) Create(ctx context.Context, iv *domain.Intervention) error {
	const query = `
        INSERT INTO interventions (id, tenant_id, linked_ticket, technician, client_id, state,
            scheduled_date, scheduled_start, notes)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		iv.ID,
		iv.TenantID,
		iv.LinkedTicket,
		iv.Technician,
		iv.ClientID,
		iv.State,
		iv.ScheduledDate,
		iv.ScheduledStart,
		iv.Notes,
	).Scan(&iv.CreatedAt, &iv.UpdatedAt)
}

func (r *interventionRepository) Update(ctx context.Context, iv *domain.Intervention) error {
	const query = `
        UPDATE interventions SET linked_ticket=$1, technician=$2, client_id=$3, state=$4,
            scheduled_date=$5, scheduled_start=$6, notes=$7, completed_at=$8, updated_at=NOW()
        WHERE id=$9`
	cmd, err := r.pool.Exec(ctx, query,
		iv.LinkedTicket,
		iv.Technician,
		iv.ClientID,
		iv.State,
		iv.ScheduledDate,
		iv.ScheduledStart,
		iv.Notes,
		iv.CompletedAt,
		iv.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *interventionRepository) GetByID(ctx context.Context, id string) (*domain.Intervention, error) {
	query := fmt.Sprintf("SELECT %s FROM interventions WHERE id=$1", interventionColumns)
	var iv domain.Intervention
	if err := scanIntervention(r.pool.QueryRow(ctx, query, id), &iv); err != nil {
		return nil, err
	}
	return &iv, nil
}

func (r *interventionRepository) ListWithFilter(ctx context.Context, filter InterventionFilter) ([]domain.Intervention, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if len(filter.States) > 0 {
		placeholders := make([]string, len(filter.States))
		for i, state := range filter.States {
			args = append(args, state)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("state IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.TechnicianID != nil {
		args = append(args, *filter.TechnicianID)
		clauses = append(clauses, fmt.Sprintf("technician=$%d", len(args)))
	}
	if filter.LinkedTicket != nil {
		args = append(args, *filter.LinkedTicket)
		clauses = append(clauses, fmt.Sprintf("linked_ticket=$%d", len(args)))
	}
	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		clauses = append(clauses, fmt.Sprintf("scheduled_date >= $%d", len(args)))
	}
	if filter.DateTo != nil {
		args = append(args, *filter.DateTo)
		clauses = append(clauses, fmt.Sprintf("scheduled_date <= $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf("SELECT %s FROM interventions WHERE %s ORDER BY scheduled_date DESC LIMIT %d OFFSET %d",
		interventionColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanInterventions(rows)
}

func (r *interventionRepository) ListPlannedStartingBefore(ctx context.Context, cutoff time.Time) ([]domain.Intervention, error) {
	query := fmt.Sprintf(`SELECT %s FROM interventions
        WHERE state='planned' AND scheduled_start IS NOT NULL AND scheduled_start <= $1
        ORDER BY scheduled_start`, interventionColumns)
	rows, err := r.pool.Query(ctx, query, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanInterventions(rows)
}

func scanIntervention(row rowScanner, iv *domain.Intervention) error {
	return row.Scan(
		&iv.ID,
		&iv.TenantID,
		&iv.LinkedTicket,
		&iv.Technician,
		&iv.ClientID,
		&iv.State,
		&iv.ScheduledDate,
		&iv.ScheduledStart,
		&iv.Notes,
		&iv.CompletedAt,
		&iv.CreatedAt,
		&iv.UpdatedAt,
	)
}

func scanInterventions(rows pgx.Rows) ([]domain.Intervention, error) {
	var result []domain.Intervention
	for rows.Next() {
		var iv domain.Intervention
		if err := scanIntervention(rows, &iv); err != nil {
			return nil, err
		}
		result = append(result, iv)
	}
	return result, rows.Err()
}
