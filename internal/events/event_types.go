package events

import (
	"time"

	"github.com/fieldforcemrser2026/syntoniqa/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated            EventType = "ticket_created"
	EventTicketStateChanged       EventType = "ticket_state_changed"
	EventTicketAssigned           EventType = "ticket_assigned"
	EventTicketReprioritized      EventType = "ticket_reprioritized"
	EventInterventionCreated      EventType = "intervention_created"
	EventInterventionStateChanged EventType = "intervention_state_changed"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	EntityID  string      `json:"entity_id"`
	ActorID   *string     `json:"actor_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Priority    string     `json:"priority"`
	Problem     string     `json:"problem"`
	ClientID    *string    `json:"client_id,omitempty"`
	SLADeadline *time.Time `json:"sla_deadline,omitempty"`
}

// TicketStateChangedPayload payload.
type TicketStateChangedPayload struct {
	OldState domain.TicketState `json:"old_state"`
	NewState domain.TicketState `json:"new_state"`
	Note     string             `json:"note,omitempty"`
	Cascade  bool               `json:"cascade,omitempty"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	TechnicianID   string  `json:"technician_id"`
	InterventionID *string `json:"intervention_id,omitempty"`
}

// TicketReprioritizedPayload payload. The SLA deadline is frozen at
// creation, so a priority edit never carries a new deadline.
type TicketReprioritizedPayload struct {
	OldPriority string `json:"old_priority"`
	NewPriority string `json:"new_priority"`
}

// InterventionCreatedPayload payload.
type InterventionCreatedPayload struct {
	TechnicianID *string `json:"technician_id,omitempty"`
	LinkedTicket *string `json:"linked_ticket,omitempty"`
}

// InterventionStateChangedPayload payload.
type InterventionStateChangedPayload struct {
	OldState domain.InterventionState `json:"old_state"`
	NewState domain.InterventionState `json:"new_state"`
}
