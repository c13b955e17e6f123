package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fieldforcemrser2026/syntoniqa/internal/domain"
	"github.com/fieldforcemrser2026/syntoniqa/internal/events"
	"github.com/fieldforcemrser2026/syntoniqa/internal/lifecycle"
	"github.com/fieldforcemrser2026/syntoniqa/internal/observability"
	"github.com/fieldforcemrser2026/syntoniqa/internal/repository"
	apperrors "github.com/fieldforcemrser2026/syntoniqa/pkg/util"
)

// Actor identifies the operator performing a service call. The only policy
// built on Role is the elevated gate on privileged transitions.
type Actor struct {
	ID   string
	Role domain.Role
}

// Elevated reports whether the actor may perform administrator-only steps.
func (a Actor) Elevated() bool {
	return a.Role == domain.RoleAdministrator
}

// DeadlineSource computes the resolution deadline for a priority, or nil
// when the priority has no configured duration.
type DeadlineSource interface {
	DeadlineFor(priority string, now time.Time) *time.Time
}

// TicketService coordinates ticket lifecycle workflows.
type TicketService struct {
	tickets       repository.TicketRepository
	interventions repository.InterventionRepository
	audit         repository.AuditRepository
	deadlines     DeadlineSource
	dispatcher    events.Dispatcher
	logger        *zap.Logger
	metrics       *observability.Metrics
	tenantID      string

	// Now is the clock; tests override it.
	Now func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Tickets       repository.TicketRepository
	Interventions repository.InterventionRepository
	Audit         repository.AuditRepository
	Deadlines     DeadlineSource
	Dispatcher    events.Dispatcher
	Logger        *zap.Logger
	Metrics       *observability.Metrics
	TenantID      string
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	ClientID  *string
	MachineID *string
	Problem   string
	Priority  string
	Notes     string
}

// TicketListFilter describes listing filters.
type TicketListFilter struct {
	States       []domain.TicketState
	Priorities   []string
	TechnicianID *string
	ClientID     *string
	ReportedFrom *time.Time
	ReportedTo   *time.Time
	Limit        int
	Offset       int
}

// AssignInput describes the compound assignment operation.
type AssignInput struct {
	TechnicianID   string
	ScheduledDate  *time.Time
	ScheduledStart *time.Time
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:       deps.Tickets,
		interventions: deps.Interventions,
		audit:         deps.Audit,
		deadlines:     deps.Deadlines,
		dispatcher:    deps.Dispatcher,
		logger:        deps.Logger,
		metrics:       deps.Metrics,
		tenantID:      deps.TenantID,
		Now:           time.Now,
	}
}

// CreateTicket opens a new ticket. The SLA deadline is computed once here
// from the priority's configured duration and never recomputed afterwards,
// even if the priority is later edited.
func (s *TicketService) CreateTicket(ctx context.Context, actor Actor, input TicketCreateInput) (*domain.Ticket, error) {
	problem := strings.TrimSpace(input.Problem)
	if problem == "" {
		return nil, apperrors.NewValidationError("problem description required", nil)
	}
	now := s.Now()
	ticket := &domain.Ticket{
		ID:          uuid.NewString(),
		TenantID:    s.tenantID,
		ClientID:    input.ClientID,
		MachineID:   input.MachineID,
		Problem:     problem,
		Priority:    input.Priority,
		State:       domain.TicketStateOpen,
		SLATier:     domain.SLATierOK,
		Notes:       strings.TrimSpace(input.Notes),
		ReportedAt:  now,
		SLADeadline: s.deadlines.DeadlineFor(input.Priority, now),
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, "ticket", ticket.ID, "create", actor, fmt.Sprintf("priority=%s", ticket.Priority))
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		EntityID: ticket.ID,
		ActorID:  actorID(actor),
		Payload: events.TicketCreatedPayload{
			Priority:    ticket.Priority,
			Problem:     ticket.Problem,
			ClientID:    ticket.ClientID,
			SLADeadline: ticket.SLADeadline,
		},
	})
	return ticket, nil
}

// GetTicket fetches a ticket by id.
func (s *TicketService) GetTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// ListTickets returns tickets matching the filter.
func (s *TicketService) ListTickets(ctx context.Context, filter TicketListFilter) ([]domain.Ticket, error) {
	return s.tickets.ListWithFilter(ctx, repository.TicketFilter{
		States:       filter.States,
		Priorities:   filter.Priorities,
		TechnicianID: filter.TechnicianID,
		ClientID:     filter.ClientID,
		ReportedFrom: filter.ReportedFrom,
		ReportedTo:   filter.ReportedTo,
		Limit:        filter.Limit,
		Offset:       filter.Offset,
	})
}

// Transition moves a ticket to the target state. A no-op request succeeds
// without touching the store, which makes offline replay of the same
// command safe. Closing a ticket and reopening a resolved one require an
// elevated actor.
func (s *TicketService) Transition(ctx context.Context, actor Actor, id string, target domain.TicketState, note string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if target == "" || target == ticket.State {
		return ticket, nil
	}
	if err := lifecycle.ValidateTransition(lifecycle.KindTicket, string(ticket.State), string(target)); err != nil {
		s.countRejected(lifecycle.KindTicket, err)
		return nil, err
	}
	if requiresElevated(ticket.State, target) && !actor.Elevated() {
		return nil, apperrors.NewForbidden("administrator role required for this transition")
	}

	now := s.Now()
	fields := map[string]any{"state": target}
	switch target {
	case domain.TicketStateAssigned:
		fields["assigned_at"] = &now
	case domain.TicketStateInProgress:
		fields["started_at"] = &now
	case domain.TicketStateResolved:
		fields["resolved_at"] = &now
	case domain.TicketStateClosed:
		fields["closed_at"] = &now
	case domain.TicketStateOpen:
		// Back to the dispatch pool.
		fields["assigned_technician"] = nil
		fields["linked_intervention"] = nil
		fields["assigned_at"] = nil
	}
	if note = strings.TrimSpace(note); note != "" {
		fields["notes"] = appendNote(ticket.Notes, note)
	}
	if err := s.tickets.Patch(ctx, id, fields); err != nil {
		return nil, apperrors.MapError(err)
	}
	if s.metrics != nil {
		s.metrics.TransitionsApplied.WithLabelValues(string(lifecycle.KindTicket), string(target)).Inc()
	}
	s.recordAudit(ctx, "ticket", id, "transition", actor, fmt.Sprintf("%s -> %s", ticket.State, target))
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStateChanged,
		EntityID: id,
		ActorID:  actorID(actor),
		Payload: events.TicketStateChangedPayload{
			OldState: ticket.State,
			NewState: target,
			Note:     note,
		},
	})
	return s.GetTicket(ctx, id)
}

// Assign is the compound dispatch operation: it transitions the ticket to
// assigned, stamps assigned_at, and optionally creates and links a planned
// intervention when a scheduled date is given. Re-assigning an already
// assigned ticket to the same technician is a no-op.
func (s *TicketService) Assign(ctx context.Context, actor Actor, id string, input AssignInput) (*domain.Ticket, error) {
	if input.TechnicianID == "" {
		return nil, apperrors.NewValidationError("technician id required", nil)
	}
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if ticket.State == domain.TicketStateAssigned &&
		ticket.AssignedTechnician != nil && *ticket.AssignedTechnician == input.TechnicianID {
		return ticket, nil
	}
	if err := lifecycle.ValidateTransition(lifecycle.KindTicket, string(ticket.State), string(domain.TicketStateAssigned)); err != nil {
		s.countRejected(lifecycle.KindTicket, err)
		return nil, err
	}

	now := s.Now()
	fields := map[string]any{
		"state":               domain.TicketStateAssigned,
		"assigned_technician": input.TechnicianID,
		"assigned_at":         &now,
	}

	var interventionID *string
	if input.ScheduledDate != nil {
		iv := &domain.Intervention{
			ID:             uuid.NewString(),
			TenantID:       s.tenantID,
			LinkedTicket:   &ticket.ID,
			Technician:     &input.TechnicianID,
			ClientID:       ticket.ClientID,
			State:          domain.InterventionStatePlanned,
			ScheduledDate:  *input.ScheduledDate,
			ScheduledStart: input.ScheduledStart,
		}
		if err := s.interventions.Create(ctx, iv); err != nil {
			return nil, err
		}
		interventionID = &iv.ID
		fields["linked_intervention"] = iv.ID
		s.publishEvent(ctx, events.Event{
			Type:     events.EventInterventionCreated,
			EntityID: iv.ID,
			ActorID:  actorID(actor),
			Payload: events.InterventionCreatedPayload{
				TechnicianID: iv.Technician,
				LinkedTicket: iv.LinkedTicket,
			},
		})
	}

	if err := s.tickets.Patch(ctx, id, fields); err != nil {
		return nil, apperrors.MapError(err)
	}
	if s.metrics != nil {
		s.metrics.TransitionsApplied.WithLabelValues(string(lifecycle.KindTicket), string(domain.TicketStateAssigned)).Inc()
	}
	s.recordAudit(ctx, "ticket", id, "assign", actor, fmt.Sprintf("technician=%s", input.TechnicianID))
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketAssigned,
		EntityID: id,
		ActorID:  actorID(actor),
		Payload: events.TicketAssignedPayload{
			TechnicianID:   input.TechnicianID,
			InterventionID: interventionID,
		},
	})
	return s.GetTicket(ctx, id)
}

// Reprioritize edits the ticket priority. The SLA deadline stays frozen at
// its creation-time value; only the sweep-derived tier will reflect the
// unchanged deadline. Documented limitation, not an oversight.
func (s *TicketService) Reprioritize(ctx context.Context, actor Actor, id, priority string) (*domain.Ticket, error) {
	if priority == "" {
		return nil, apperrors.NewValidationError("priority required", nil)
	}
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if ticket.Priority == priority {
		return ticket, nil
	}
	if !ticket.Open() {
		return nil, apperrors.NewConflict("ticket is closed", nil)
	}
	if err := s.tickets.Patch(ctx, id, map[string]any{"priority": priority}); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.recordAudit(ctx, "ticket", id, "reprioritize", actor, fmt.Sprintf("%s -> %s", ticket.Priority, priority))
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketReprioritized,
		EntityID: id,
		ActorID:  actorID(actor),
		Payload: events.TicketReprioritizedPayload{
			OldPriority: ticket.Priority,
			NewPriority: priority,
		},
	})
	return s.GetTicket(ctx, id)
}

// History returns the audit trail for a ticket.
func (s *TicketService) History(ctx context.Context, id string, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.audit.ListByEntity(ctx, "ticket", id, limit)
}

// requiresElevated gates the privileged transitions: closing from any state
// and reopening a resolved ticket.
func requiresElevated(from, to domain.TicketState) bool {
	if to == domain.TicketStateClosed {
		return true
	}
	return from == domain.TicketStateResolved && to == domain.TicketStateInProgress
}

func appendNote(existing, note string) string {
	if existing == "" {
		return note
	}
	return existing + "\n" + note
}

func actorID(actor Actor) *string {
	if actor.ID == "" {
		return nil
	}
	id := actor.ID
	return &id
}

func (s *TicketService) countRejected(kind lifecycle.EntityKind, err error) {
	if s.metrics == nil {
		return
	}
	code := "ILLEGAL_TRANSITION"
	if apperrors.IsCode(err, "UNKNOWN_STATE") {
		code = "UNKNOWN_STATE"
	}
	s.metrics.TransitionsRejected.WithLabelValues(string(kind), code).Inc()
}

func (s *TicketService) recordAudit(ctx context.Context, kind, id, action string, actor Actor, detail string) {
	if s.audit == nil {
		return
	}
	entry := &domain.AuditEntry{
		ID:         uuid.NewString(),
		EntityKind: kind,
		EntityID:   id,
		Action:     action,
		ActorID:    actorID(actor),
		Detail:     detail,
		CreatedAt:  s.Now(),
	}
	if err := s.audit.Create(ctx, entry); err != nil {
		s.logger.Error("audit write failed",
			zap.String("entity", kind+":"+id),
			zap.String("action", action),
			zap.Error(err))
	}
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = s.Now()
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Error("publish event failed", zap.String("type", string(event.Type)), zap.Error(err))
	}
}
