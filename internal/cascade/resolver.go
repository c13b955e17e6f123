package cascade

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fieldforcemrser2026/syntoniqa/internal/domain"
	"github.com/fieldforcemrser2026/syntoniqa/internal/events"
	"github.com/fieldforcemrser2026/syntoniqa/internal/observability"
	"github.com/fieldforcemrser2026/syntoniqa/internal/repository"
)

// Resolver propagates an intervention state change to its linked ticket,
// synchronously and inside the same logical operation as the triggering
// transition. Each cascade rule carries its own set of ticket states it
// may fire from; a ticket outside that set is logged and skipped, never
// forced. The sets are deliberately wider than the ticket's user-facing
// transition table: a completed intervention resolves its ticket even from
// assigned or scheduled, because the field work happened regardless of
// which dispatch step the ticket was sitting in.
type Resolver struct {
	tickets    repository.TicketRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics

	// Now is the clock; tests override it.
	Now func() time.Time
}

// activeTicketStates are the states a cascade may act on. Resolved and
// closed tickets are never touched by a cascade.
var activeTicketStates = map[domain.TicketState]bool{
	domain.TicketStateAssigned:   true,
	domain.TicketStateScheduled:  true,
	domain.TicketStateInProgress: true,
}

// NewResolver constructs the resolver.
func NewResolver(tickets repository.TicketRepository, dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics) *Resolver {
	return &Resolver{
		tickets:    tickets,
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
		Now:        time.Now,
	}
}

// OnInterventionTransition applies the ticket side effect for the given
// intervention transition. It returns an error only on a store failure;
// a skipped cascade is not an error.
func (r *Resolver) OnInterventionTransition(ctx context.Context, iv *domain.Intervention, newState domain.InterventionState) error {
	if iv.LinkedTicket == nil {
		return nil
	}
	switch newState {
	case domain.InterventionStateCompleted:
		return r.cascadeTicket(ctx, *iv.LinkedTicket, iv.ID, domain.TicketStateResolved, activeTicketStates)
	case domain.InterventionStateInProgress:
		// Narrower guard on purpose: a scheduled ticket stays scheduled
		// until its own transition is requested.
		return r.cascadeTicket(ctx, *iv.LinkedTicket, iv.ID, domain.TicketStateInProgress, map[domain.TicketState]bool{
			domain.TicketStateAssigned: true,
		})
	case domain.InterventionStateCancelled:
		return r.cancelTicket(ctx, *iv.LinkedTicket, iv.ID)
	default:
		return nil
	}
}

func (r *Resolver) cascadeTicket(ctx context.Context, ticketID, interventionID string, target domain.TicketState, eligible map[domain.TicketState]bool) error {
	ticket, err := r.tickets.GetByID(ctx, ticketID)
	if err != nil {
		r.logger.Warn("cascade target ticket not loadable",
			zap.String("ticket_id", ticketID),
			zap.String("intervention_id", interventionID),
			zap.Error(err))
		return nil
	}
	if ticket.State == target {
		return nil
	}
	if !eligible[ticket.State] {
		r.logger.Info("cascade skipped, ticket state not eligible",
			zap.String("ticket_id", ticketID),
			zap.String("from", string(ticket.State)),
			zap.String("to", string(target)))
		if r.metrics != nil {
			r.metrics.CascadesSkipped.Inc()
		}
		return nil
	}
	now := r.Now()
	fields := map[string]any{"state": target}
	switch target {
	case domain.TicketStateInProgress:
		fields["started_at"] = &now
	case domain.TicketStateResolved:
		fields["resolved_at"] = &now
	}
	if err := r.tickets.Patch(ctx, ticketID, fields); err != nil {
		return err
	}
	if r.metrics != nil {
		r.metrics.CascadesApplied.Inc()
	}
	r.publishStateChange(ctx, ticketID, ticket.State, target)
	return nil
}

// cancelTicket reverts the linked ticket to the dispatch pool: state back
// to open, technician and intervention link cleared. It fires from any
// active state, so a ticket whose work was already underway still returns
// to the pool when its intervention is called off.
func (r *Resolver) cancelTicket(ctx context.Context, ticketID, interventionID string) error {
	ticket, err := r.tickets.GetByID(ctx, ticketID)
	if err != nil {
		r.logger.Warn("cascade target ticket not loadable",
			zap.String("ticket_id", ticketID),
			zap.String("intervention_id", interventionID),
			zap.Error(err))
		return nil
	}
	if ticket.State == domain.TicketStateOpen {
		return nil
	}
	if !activeTicketStates[ticket.State] {
		r.logger.Info("cascade skipped, ticket state not eligible",
			zap.String("ticket_id", ticketID),
			zap.String("from", string(ticket.State)),
			zap.String("to", string(domain.TicketStateOpen)))
		if r.metrics != nil {
			r.metrics.CascadesSkipped.Inc()
		}
		return nil
	}
	fields := map[string]any{
		"state":               domain.TicketStateOpen,
		"assigned_technician": nil,
		"linked_intervention": nil,
		"assigned_at":         nil,
	}
	if err := r.tickets.Patch(ctx, ticketID, fields); err != nil {
		return err
	}
	if r.metrics != nil {
		r.metrics.CascadesApplied.Inc()
	}
	r.publishStateChange(ctx, ticketID, ticket.State, domain.TicketStateOpen)
	return nil
}

func (r *Resolver) publishStateChange(ctx context.Context, ticketID string, from, to domain.TicketState) {
	if r.dispatcher == nil {
		return
	}
	err := r.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventTicketStateChanged,
		EntityID:  ticketID,
		Timestamp: r.Now(),
		Payload: events.TicketStateChangedPayload{
			OldState: from,
			NewState: to,
			Cascade:  true,
		},
	})
	if err != nil {
		r.logger.Error("publish cascade event failed", zap.String("ticket_id", ticketID), zap.Error(err))
	}
}
