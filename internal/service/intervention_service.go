package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fieldforcemrser2026/syntoniqa/internal/cascade"
	"github.com/fieldforcemrser2026/syntoniqa/internal/domain"
	"github.com/fieldforcemrser2026/syntoniqa/internal/events"
	"github.com/fieldforcemrser2026/syntoniqa/internal/lifecycle"
	"github.com/fieldforcemrser2026/syntoniqa/internal/observability"
	"github.com/fieldforcemrser2026/syntoniqa/internal/repository"
	apperrors "github.com/fieldforcemrser2026/syntoniqa/pkg/util"
)

// InterventionService coordinates planned-visit workflows. Its transitions
// drive the cascade resolver synchronously: the ticket side effect happens
// inside the same logical operation, never on a background path.
type InterventionService struct {
	interventions repository.InterventionRepository
	tickets       repository.TicketRepository
	audit         repository.AuditRepository
	resolver      *cascade.Resolver
	dispatcher    events.Dispatcher
	logger        *zap.Logger
	metrics       *observability.Metrics
	tenantID      string

	Now func() time.Time
}

// InterventionDependencies bundles collaborators.
type InterventionDependencies struct {
	Interventions repository.InterventionRepository
	Tickets       repository.TicketRepository
	Audit         repository.AuditRepository
	Resolver      *cascade.Resolver
	Dispatcher    events.Dispatcher
	Logger        *zap.Logger
	Metrics       *observability.Metrics
	TenantID      string
}

// InterventionCreateInput describes creation payload.
type InterventionCreateInput struct {
	LinkedTicket   *string
	Technician     *string
	ClientID       *string
	ScheduledDate  time.Time
	ScheduledStart *time.Time
	Notes          string
}

// InterventionListFilter describes listing filters.
type InterventionListFilter struct {
	States       []domain.InterventionState
	TechnicianID *string
	LinkedTicket *string
	DateFrom     *time.Time
	DateTo       *time.Time
	Limit        int
	Offset       int
}

// NewInterventionService constructs the service.
func NewInterventionService(deps InterventionDependencies) *InterventionService {
	return &InterventionService{
		interventions: deps.Interventions,
		tickets:       deps.Tickets,
		audit:         deps.Audit,
		resolver:      deps.Resolver,
		dispatcher:    deps.Dispatcher,
		logger:        deps.Logger,
		metrics:       deps.Metrics,
		tenantID:      deps.TenantID,
		Now:           time.Now,
	}
}

// CreateIntervention plans a new visit. When it links a ticket, the back
// reference on the ticket is set in the same operation.
func (s *InterventionService) CreateIntervention(ctx context.Context, actor Actor, input InterventionCreateInput) (*domain.Intervention, error) {
	if input.ScheduledDate.IsZero() {
		return nil, apperrors.NewValidationError("scheduled date required", nil)
	}
	if input.LinkedTicket != nil {
		ticket, err := s.tickets.GetByID(ctx, *input.LinkedTicket)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		if !ticket.Open() {
			return nil, apperrors.NewConflict("linked ticket is closed", nil)
		}
	}
	iv := &domain.Intervention{
		ID:             uuid.NewString(),
		TenantID:       s.tenantID,
		LinkedTicket:   input.LinkedTicket,
		Technician:     input.Technician,
		ClientID:       input.ClientID,
		State:          domain.InterventionStatePlanned,
		ScheduledDate:  input.ScheduledDate,
		ScheduledStart: input.ScheduledStart,
		Notes:          strings.TrimSpace(input.Notes),
	}
	if err := s.interventions.Create(ctx, iv); err != nil {
		return nil, err
	}
	if iv.LinkedTicket != nil {
		if err := s.tickets.Patch(ctx, *iv.LinkedTicket, map[string]any{"linked_intervention": iv.ID}); err != nil {
			s.logger.Error("linking ticket to intervention failed",
				zap.String("ticket_id", *iv.LinkedTicket),
				zap.String("intervention_id", iv.ID),
				zap.Error(err))
		}
	}
	s.recordAudit(ctx, iv.ID, "create", actor, fmt.Sprintf("date=%s", iv.ScheduledDate.Format("2006-01-02")))
	s.publishEvent(ctx, events.Event{
		Type:     events.EventInterventionCreated,
		EntityID: iv.ID,
		ActorID:  actorID(actor),
		Payload: events.InterventionCreatedPayload{
			TechnicianID: iv.Technician,
			LinkedTicket: iv.LinkedTicket,
		},
	})
	return iv, nil
}

// GetIntervention fetches by id.
func (s *InterventionService) GetIntervention(ctx context.Context, id string) (*domain.Intervention, error) {
	iv, err := s.interventions.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return iv, nil
}

// ListInterventions returns interventions matching the filter.
func (s *InterventionService) ListInterventions(ctx context.Context, filter InterventionListFilter) ([]domain.Intervention, error) {
	return s.interventions.ListWithFilter(ctx, repository.InterventionFilter{
		States:       filter.States,
		TechnicianID: filter.TechnicianID,
		LinkedTicket: filter.LinkedTicket,
		DateFrom:     filter.DateFrom,
		DateTo:       filter.DateTo,
		Limit:        filter.Limit,
		Offset:       filter.Offset,
	})
}

// Transition moves an intervention to the target state and applies the
// ticket cascade. A no-op request succeeds without touching the store.
// A failed cascade store write surfaces as the operation's error; a cascade
// skipped by validation does not.
func (s *InterventionService) Transition(ctx context.Context, actor Actor, id string, target domain.InterventionState) (*domain.Intervention, error) {
	iv, err := s.interventions.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if target == "" || target == iv.State {
		return iv, nil
	}
	if err := lifecycle.ValidateTransition(lifecycle.KindIntervention, string(iv.State), string(target)); err != nil {
		s.countRejected(err)
		return nil, err
	}

	oldState := iv.State
	iv.State = target
	if target == domain.InterventionStateCompleted {
		now := s.Now()
		iv.CompletedAt = &now
	}
	if err := s.interventions.Update(ctx, iv); err != nil {
		return nil, apperrors.MapError(err)
	}
	if s.metrics != nil {
		s.metrics.TransitionsApplied.WithLabelValues(string(lifecycle.KindIntervention), string(target)).Inc()
	}

	if s.resolver != nil {
		if err := s.resolver.OnInterventionTransition(ctx, iv, target); err != nil {
			return nil, apperrors.MapError(err)
		}
	}

	s.recordAudit(ctx, id, "transition", actor, fmt.Sprintf("%s -> %s", oldState, target))
	s.publishEvent(ctx, events.Event{
		Type:     events.EventInterventionStateChanged,
		EntityID: id,
		ActorID:  actorID(actor),
		Payload: events.InterventionStateChangedPayload{
			OldState: oldState,
			NewState: target,
		},
	})
	return iv, nil
}

func (s *InterventionService) countRejected(err error) {
	if s.metrics == nil {
		return
	}
	code := "ILLEGAL_TRANSITION"
	if apperrors.IsCode(err, "UNKNOWN_STATE") {
		code = "UNKNOWN_STATE"
	}
	s.metrics.TransitionsRejected.WithLabelValues(string(lifecycle.KindIntervention), code).Inc()
}

func (s *InterventionService) recordAudit(ctx context.Context, id, action string, actor Actor, detail string) {
	if s.audit == nil {
		return
	}
	entry := &domain.AuditEntry{
		ID:         uuid.NewString(),
		EntityKind: "intervention",
		EntityID:   id,
		Action:     action,
		ActorID:    actorID(actor),
		Detail:     detail,
		CreatedAt:  s.Now(),
	}
	if err := s.audit.Create(ctx, entry); err != nil {
		s.logger.Error("audit write failed",
			zap.String("entity", "intervention:"+id),
			zap.String("action", action),
			zap.Error(err))
	}
}

func (s *InterventionService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = s.Now()
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Error("publish event failed", zap.String("type", string(event.Type)), zap.Error(err))
	}
}
