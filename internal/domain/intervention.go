package domain

import "time"

// InterventionState enumerates lifecycle states for planned visits.
type InterventionState string

const (
	InterventionStatePlanned    InterventionState = "planned"
	InterventionStateInProgress InterventionState = "in_progress"
	InterventionStateCompleted  InterventionState = "completed"
	InterventionStateCancelled  InterventionState = "cancelled"
)

// Intervention is a scheduled or in-progress technician visit, optionally
// linked back to the ticket it was created for. LinkedTicket is the inverse
// of Ticket.LinkedIntervention and is kept as an id reference only.
type Intervention struct {
	ID             string
	TenantID       string
	LinkedTicket   *string
	Technician     *string
	ClientID       *string
	State          InterventionState
	ScheduledDate  time.Time
	ScheduledStart *time.Time
	Notes          string
	CompletedAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
