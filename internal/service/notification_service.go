package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fieldforcemrser2026/syntoniqa/internal/events"
	"github.com/fieldforcemrser2026/syntoniqa/internal/notify"
)

// NotificationService bridges domain events onto the notifier. Handler
// errors are swallowed by the dispatcher; a lost notification never fails
// the transition that produced it.
type NotificationService struct {
	dispatcher events.Dispatcher
	notifier   notify.Notifier
	logger     *zap.Logger
	tenantID   string
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, notifier notify.Notifier, logger *zap.Logger, tenantID string) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		notifier:   notifier,
		logger:     logger,
		tenantID:   tenantID,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketStateChanged, n.handleTicketStateChanged)
	n.dispatcher.Subscribe(events.EventTicketAssigned, n.handleTicketAssigned)
	n.dispatcher.Subscribe(events.EventInterventionStateChanged, n.handleInterventionStateChanged)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCreatedPayload)
	if !ok {
		return nil
	}
	n.notifier.Notify(ctx, notify.Event{
		Kind:        "ticket_created",
		Subject:     "New ticket",
		Body:        fmt.Sprintf("Ticket %s reported: %s (priority %s)", event.EntityID, payload.Problem, payload.Priority),
		ReferenceID: event.EntityID,
		TenantID:    n.tenantID,
	}, notify.Audience{Administrators: true})
	return nil
}

func (n *NotificationService) handleTicketStateChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketStateChangedPayload)
	if !ok {
		return nil
	}
	n.notifier.Notify(ctx, notify.Event{
		Kind:        "ticket_state_changed",
		Subject:     "Ticket updated",
		Body:        fmt.Sprintf("Ticket %s moved %s -> %s", event.EntityID, payload.OldState, payload.NewState),
		ReferenceID: event.EntityID,
		TenantID:    n.tenantID,
	}, notify.Audience{Administrators: true})
	return nil
}

func (n *NotificationService) handleTicketAssigned(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketAssignedPayload)
	if !ok {
		return nil
	}
	technician := payload.TechnicianID
	n.notifier.Notify(ctx, notify.Event{
		Kind:        "ticket_assigned",
		Subject:     "Ticket assigned to you",
		Body:        fmt.Sprintf("Ticket %s has been assigned to you", event.EntityID),
		ReferenceID: event.EntityID,
		TenantID:    n.tenantID,
	}, notify.Audience{TechnicianID: &technician})
	return nil
}

func (n *NotificationService) handleInterventionStateChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.InterventionStateChangedPayload)
	if !ok {
		return nil
	}
	n.notifier.Notify(ctx, notify.Event{
		Kind:        "intervention_state_changed",
		Subject:     "Intervention updated",
		Body:        fmt.Sprintf("Intervention %s moved %s -> %s", event.EntityID, payload.OldState, payload.NewState),
		ReferenceID: event.EntityID,
		TenantID:    n.tenantID,
	}, notify.Audience{Administrators: true})
	return nil
}
