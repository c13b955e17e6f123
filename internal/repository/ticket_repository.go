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

// TicketFilter captures listing parameters.
type TicketFilter struct {
	States       []domain.TicketState
	Priorities   []string
	TechnicianID *string
	ClientID     *string
	ReportedFrom *time.Time
	ReportedTo   *time.Time
	Limit        int
	Offset       int
}

// TicketRepository encapsulates ticket persistence. Updates are unconditional
// read-then-write: there is no optimistic concurrency token, last write wins.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	Patch(ctx context.Context, id string, fields map[string]any) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	ListOpenWithDeadline(ctx context.Context) ([]domain.Ticket, error)
	ListInState(ctx context.Context, state domain.TicketState) ([]domain.Ticket, error)
}

// ticketWritable mirrors the columns lifecycle operations may touch; Patch
// rejects anything else so sweeps cannot clobber identity fields.
var ticketWritable = map[string]bool{
	"client_id": true, "machine_id": true, "problem": true, "priority": true,
	"state": true, "sla_deadline": true, "sla_tier": true,
	"assigned_technician": true, "linked_intervention": true, "notes": true,
	"assigned_at": true, "started_at": true, "resolved_at": true, "closed_at": true,
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, tenant_id, client_id, machine_id, problem, priority, state,
	sla_deadline, sla_tier, assigned_technician, linked_intervention, notes,
	reported_at, assigned_at, started_at, resolved_at, closed_at, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (id, tenant_id, client_id, machine_id, problem, priority, state,
            sla_deadline, sla_tier, assigned_technician, linked_intervention, notes, reported_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
        RETURNING created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.ID,
		ticket.TenantID,
		ticket.ClientID,
		ticket.MachineID,
		ticket.Problem,
		ticket.Priority,
		ticket.State,
		ticket.SLADeadline,
		ticket.SLATier,
		ticket.AssignedTechnician,
		ticket.LinkedIntervention,
		ticket.Notes,
		ticket.ReportedAt,
	).Scan(&ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET client_id=$1, machine_id=$2, problem=$3, priority=$4, state=$5,
            sla_deadline=$6, sla_tier=$7, assigned_technician=$8, linked_intervention=$9,
            notes=$10, assigned_at=$11, started_at=$12, resolved_at=$13, closed_at=$14,
            updated_at=NOW()
        WHERE id=$15`
	cmd, err := r.pool.Exec(ctx, query,
		ticket.ClientID,
		ticket.MachineID,
		ticket.Problem,
		ticket.Priority,
		ticket.State,
		ticket.SLADeadline,
		ticket.SLATier,
		ticket.AssignedTechnician,
		ticket.LinkedIntervention,
		ticket.Notes,
		ticket.AssignedAt,
		ticket.StartedAt,
		ticket.ResolvedAt,
		ticket.ClosedAt,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) Patch(ctx context.Context, id string, fields map[string]any) error {
	sets := []string{}
	args := []any{}
	for col, val := range fields {
		if !ticketWritable[col] {
			return fmt.Errorf("ticket column %q is not writable", col)
		}
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s=$%d", col, len(args)))
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE tickets SET %s, updated_at=NOW() WHERE id=$%d",
		strings.Join(sets, ", "), len(args))
	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := fmt.Sprintf("SELECT %s FROM tickets WHERE id=$1", ticketColumns)
	var ticket domain.Ticket
	if err := scanTicket(r.pool.QueryRow(ctx, query, id), &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
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
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.TechnicianID != nil {
		args = append(args, *filter.TechnicianID)
		clauses = append(clauses, fmt.Sprintf("assigned_technician=$%d", len(args)))
	}
	if filter.ClientID != nil {
		args = append(args, *filter.ClientID)
		clauses = append(clauses, fmt.Sprintf("client_id=$%d", len(args)))
	}
	if filter.ReportedFrom != nil {
		args = append(args, *filter.ReportedFrom)
		clauses = append(clauses, fmt.Sprintf("reported_at >= $%d", len(args)))
	}
	if filter.ReportedTo != nil {
		args = append(args, *filter.ReportedTo)
		clauses = append(clauses, fmt.Sprintf("reported_at <= $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf("SELECT %s FROM tickets WHERE %s ORDER BY reported_at DESC LIMIT %d OFFSET %d",
		ticketColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListOpenWithDeadline(ctx context.Context) ([]domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets
        WHERE state <> 'closed' AND sla_deadline IS NOT NULL
        ORDER BY sla_deadline`, ticketColumns)
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListInState(ctx context.Context, state domain.TicketState) ([]domain.Ticket, error) {
	query := fmt.Sprintf("SELECT %s FROM tickets WHERE state=$1 ORDER BY reported_at", ticketColumns)
	rows, err := r.pool.Query(ctx, query, state)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner, ticket *domain.Ticket) error {
	return row.Scan(
		&ticket.ID,
		&ticket.TenantID,
		&ticket.ClientID,
		&ticket.MachineID,
		&ticket.Problem,
		&ticket.Priority,
		&ticket.State,
		&ticket.SLADeadline,
		&ticket.SLATier,
		&ticket.AssignedTechnician,
		&ticket.LinkedIntervention,
		&ticket.Notes,
		&ticket.ReportedAt,
		&ticket.AssignedAt,
		&ticket.StartedAt,
		&ticket.ResolvedAt,
		&ticket.ClosedAt,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	)
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := scanTicket(rows, &ticket); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
