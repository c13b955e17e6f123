package domain

import "time"

// TicketState enumerates lifecycle states for field-reported tickets.
type TicketState string

const (
	TicketStateOpen       TicketState = "open"
	TicketStateAssigned   TicketState = "assigned"
	TicketStateScheduled  TicketState = "scheduled"
	TicketStateInProgress TicketState = "in_progress"
	TicketStateResolved   TicketState = "resolved"
	TicketStateClosed     TicketState = "closed"
)

// SLATier classifies ticket health relative to its resolution deadline.
type SLATier string

const (
	SLATierOK       SLATier = "ok"
	SLATierWarning  SLATier = "warning"
	SLATierCritical SLATier = "critical"
	SLATierBreach   SLATier = "breach"
)

// TierSeverity orders tiers from healthiest to worst. Unknown tiers rank
// below ok so a corrupted value is corrected by the next sweep.
func TierSeverity(t SLATier) int {
	switch t {
	case SLATierOK:
		return 0
	case SLATierWarning:
		return 1
	case SLATierCritical:
		return 2
	case SLATierBreach:
		return 3
	default:
		return -1
	}
}

// Ticket is the aggregate for field-reported problems tracked against an SLA.
// LinkedIntervention holds only the intervention id; the record is resolved
// through its repository, never embedded.
type Ticket struct {
	ID                 string
	TenantID           string
	ClientID           *string
	MachineID          *string
	Problem            string
	Priority           string
	State              TicketState
	SLADeadline        *time.Time
	SLATier            SLATier
	AssignedTechnician *string
	LinkedIntervention *string
	Notes              string
	ReportedAt         time.Time
	AssignedAt         *time.Time
	StartedAt          *time.Time
	ResolvedAt         *time.Time
	ClosedAt           *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Open reports whether the ticket is in a non-terminal state.
func (t *Ticket) Open() bool {
	return t.State != TicketStateClosed
}
