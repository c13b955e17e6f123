package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fieldforcemrser2026/syntoniqa/internal/domain"
)

// In-memory repository implementations backing the sweep, cascade, and
// service tests. They mirror the store's semantics: unconditional writes,
// no locking beyond the map mutex, last write wins.

// MemoryTicketRepository is a map-backed TicketRepository.
type MemoryTicketRepository struct {
	mu      sync.Mutex
	tickets map[string]domain.Ticket

	// PatchCalls counts Patch invocations so tests can assert that sweeps
	// write back only on change.
	PatchCalls int
}

// NewMemoryTicketRepository creates an empty store.
func NewMemoryTicketRepository() *MemoryTicketRepository {
	return &MemoryTicketRepository{tickets: make(map[string]domain.Ticket)}
}

func (r *MemoryTicketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tickets[ticket.ID]; exists {
		return fmt.Errorf("ticket %s already exists", ticket.ID)
	}
	now := time.Now()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	r.tickets[ticket.ID] = *ticket
	return nil
}

func (r *MemoryTicketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tickets[ticket.ID]; !exists {
		return pgx.ErrNoRows
	}
	ticket.UpdatedAt = time.Now()
	r.tickets[ticket.ID] = *ticket
	return nil
}

func (r *MemoryTicketRepository) Patch(ctx context.Context, id string, fields map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, exists := r.tickets[id]
	if !exists {
		return pgx.ErrNoRows
	}
	r.PatchCalls++
	for col, val := range fields {
		switch col {
		case "state":
			ticket.State = val.(domain.TicketState)
		case "sla_tier":
			ticket.SLATier = val.(domain.SLATier)
		case "priority":
			ticket.Priority = val.(string)
		case "notes":
			ticket.Notes = val.(string)
		case "assigned_technician":
			ticket.AssignedTechnician = toStringPtr(val)
		case "linked_intervention":
			ticket.LinkedIntervention = toStringPtr(val)
		case "assigned_at":
			ticket.AssignedAt = toTimePtr(val)
		case "started_at":
			ticket.StartedAt = toTimePtr(val)
		case "resolved_at":
			ticket.ResolvedAt = toTimePtr(val)
		case "closed_at":
			ticket.ClosedAt = toTimePtr(val)
		default:
			return fmt.Errorf("ticket column %q is not writable", col)
		}
	}
	ticket.UpdatedAt = time.Now()
	r.tickets[id] = ticket
	return nil
}

func (r *MemoryTicketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, exists := r.tickets[id]
	if !exists {
		return nil, pgx.ErrNoRows
	}
	copied := ticket
	return &copied, nil
}

func (r *MemoryTicketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Ticket
	for _, ticket := range r.tickets {
		if len(filter.States) > 0 && !containsState(filter.States, ticket.State) {
			continue
		}
		if filter.TechnicianID != nil &&
			(ticket.AssignedTechnician == nil || *ticket.AssignedTechnician != *filter.TechnicianID) {
			continue
		}
		result = append(result, ticket)
	}
	sortTicketsByReportedAt(result)
	return result, nil
}

func (r *MemoryTicketRepository) ListOpenWithDeadline(ctx context.Context) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Ticket
	for _, ticket := range r.tickets {
		if ticket.State != domain.TicketStateClosed && ticket.SLADeadline != nil {
			result = append(result, ticket)
		}
	}
	sortTicketsByReportedAt(result)
	return result, nil
}

func (r *MemoryTicketRepository) ListInState(ctx context.Context, state domain.TicketState) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Ticket
	for _, ticket := range r.tickets {
		if ticket.State == state {
			result = append(result, ticket)
		}
	}
	sortTicketsByReportedAt(result)
	return result, nil
}

// MemoryInterventionRepository is a map-backed InterventionRepository.
type MemoryInterventionRepository struct {
	mu            sync.Mutex
	interventions map[string]domain.Intervention
}

// NewMemoryInterventionRepository creates an empty store.
func NewMemoryInterventionRepository() *MemoryInterventionRepository {
	return &MemoryInterventionRepository{interventions: make(map[string]domain.Intervention)}
}

func (r *MemoryInterventionRepository) Create(ctx context.Context, iv *domain.Intervention) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.interventions[iv.ID]; exists {
		return fmt.Errorf("intervention %s already exists", iv.ID)
	}
	now := time.Now()
	iv.CreatedAt = now
	iv.UpdatedAt = now
	r.interventions[iv.ID] = *iv
	return nil
}

func (r *MemoryInterventionRepository) Update(ctx context.Context, iv *domain.Intervention) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.interventions[iv.ID]; !exists {
		return pgx.ErrNoRows
	}
	iv.UpdatedAt = time.Now()
	r.interventions[iv.ID] = *iv
	return nil
}

func (r *MemoryInterventionRepository) GetByID(ctx context.Context, id string) (*domain.Intervention, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	iv, exists := r.interventions[id]
	if !exists {
		return nil, pgx.ErrNoRows
	}
	copied := iv
	return &copied, nil
}

func (r *MemoryInterventionRepository) ListWithFilter(ctx context.Context, filter InterventionFilter) ([]domain.Intervention, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Intervention
	for _, iv := range r.interventions {
		if len(filter.States) > 0 && !containsInterventionState(filter.States, iv.State) {
			continue
		}
		if filter.LinkedTicket != nil &&
			(iv.LinkedTicket == nil || *iv.LinkedTicket != *filter.LinkedTicket) {
			continue
		}
		result = append(result, iv)
	}
	return result, nil
}

func (r *MemoryInterventionRepository) ListPlannedStartingBefore(ctx context.Context, cutoff time.Time) ([]domain.Intervention, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Intervention
	for _, iv := range r.interventions {
		if iv.State != domain.InterventionStatePlanned || iv.ScheduledStart == nil {
			continue
		}
		if !iv.ScheduledStart.After(cutoff) {
			result = append(result, iv)
		}
	}
	return result, nil
}

// MemoryNotificationRepository is a slice-backed NotificationRepository.
type MemoryNotificationRepository struct {
	mu            sync.Mutex
	Notifications []domain.Notification
}

// NewMemoryNotificationRepository creates an empty store.
func NewMemoryNotificationRepository() *MemoryNotificationRepository {
	return &MemoryNotificationRepository{}
}

func (r *MemoryNotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Notifications = append(r.Notifications, *n)
	return nil
}

func (r *MemoryNotificationRepository) ListByRecipient(ctx context.Context, recipientID string, limit int) ([]domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Notification
	for _, n := range r.Notifications {
		if n.RecipientID == recipientID {
			result = append(result, n)
		}
	}
	return result, nil
}

func (r *MemoryNotificationRepository) MarkRead(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.Notifications {
		if r.Notifications[i].ID == id {
			now := time.Now()
			r.Notifications[i].State = domain.NotificationStateRead
			r.Notifications[i].ReadAt = &now
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r *MemoryNotificationRepository) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	now := time.Now()
	for i := range r.Notifications {
		if r.Notifications[i].RecipientID == recipientID && r.Notifications[i].State == domain.NotificationStateSent {
			r.Notifications[i].State = domain.NotificationStateRead
			r.Notifications[i].ReadAt = &now
			count++
		}
	}
	return count, nil
}

// MemoryAuditRepository is a slice-backed AuditRepository.
type MemoryAuditRepository struct {
	mu      sync.Mutex
	Entries []domain.AuditEntry
}

// NewMemoryAuditRepository creates an empty store.
func NewMemoryAuditRepository() *MemoryAuditRepository {
	return &MemoryAuditRepository{}
}

func (r *MemoryAuditRepository) Create(ctx context.Context, entry *domain.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry.CreatedAt = time.Now()
	r.Entries = append(r.Entries, *entry)
	return nil
}

func (r *MemoryAuditRepository) ListByEntity(ctx context.Context, kind, id string, limit int) ([]domain.AuditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.AuditEntry
	for _, entry := range r.Entries {
		if entry.EntityKind == kind && entry.EntityID == id {
			result = append(result, entry)
		}
	}
	return result, nil
}

func containsState(states []domain.TicketState, state domain.TicketState) bool {
	for _, s := range states {
		if s == state {
			return true
		}
	}
	return false
}

func containsInterventionState(states []domain.InterventionState, state domain.InterventionState) bool {
	for _, s := range states {
		if s == state {
			return true
		}
	}
	return false
}

func sortTicketsByReportedAt(tickets []domain.Ticket) {
	sort.Slice(tickets, func(i, j int) bool {
		return tickets[i].ReportedAt.Before(tickets[j].ReportedAt)
	})
}

func toStringPtr(val any) *string {
	if val == nil {
		return nil
	}
	if p, ok := val.(*string); ok {
		return p
	}
	s := val.(string)
	return &s
}

func toTimePtr(val any) *time.Time {
	if val == nil {
		return nil
	}
	if p, ok := val.(*time.Time); ok {
		return p
	}
	t := val.(time.Time)
	return &t
}
