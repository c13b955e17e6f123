package dto

import (
	"time"

	"github.com/fieldforcemrser2026/syntoniqa/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	ClientID  *string `json:"client_id"`
	MachineID *string `json:"machine_id"`
	Problem   string  `json:"problem"`
	Priority  string  `json:"priority"`
	Notes     string  `json:"notes"`
}

// TransitionTicketRequest payload.
type TransitionTicketRequest struct {
	Target string `json:"target"`
	Note   string `json:"note"`
}

// AssignTicketRequest payload for the compound dispatch operation.
type AssignTicketRequest struct {
	TechnicianID   string     `json:"technician_id"`
	ScheduledDate  *time.Time `json:"scheduled_date"`
	ScheduledStart *time.Time `json:"scheduled_start"`
}

// ReprioritizeRequest payload.
type ReprioritizeRequest struct {
	Priority string `json:"priority"`
}

// TicketResponse serializes a ticket.
type TicketResponse struct {
	ID                 string             `json:"id"`
	ClientID           *string            `json:"client_id,omitempty"`
	MachineID          *string            `json:"machine_id,omitempty"`
	Problem            string             `json:"problem"`
	Priority           string             `json:"priority"`
	State              domain.TicketState `json:"state"`
	SLADeadline        *time.Time         `json:"sla_deadline,omitempty"`
	SLATier            domain.SLATier     `json:"sla_tier"`
	AssignedTechnician *string            `json:"assigned_technician,omitempty"`
	LinkedIntervention *string            `json:"linked_intervention,omitempty"`
	Notes              string             `json:"notes,omitempty"`
	ReportedAt         time.Time          `json:"reported_at"`
	AssignedAt         *time.Time         `json:"assigned_at,omitempty"`
	StartedAt          *time.Time         `json:"started_at,omitempty"`
	ResolvedAt         *time.Time         `json:"resolved_at,omitempty"`
	ClosedAt           *time.Time         `json:"closed_at,omitempty"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// FromTicket converts the domain entity.
func FromTicket(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:                 t.ID,
		ClientID:           t.ClientID,
		MachineID:          t.MachineID,
		Problem:            t.Problem,
		Priority:           t.Priority,
		State:              t.State,
		SLADeadline:        t.SLADeadline,
		SLATier:            t.SLATier,
		AssignedTechnician: t.AssignedTechnician,
		LinkedIntervention: t.LinkedIntervention,
		Notes:              t.Notes,
		ReportedAt:         t.ReportedAt,
		AssignedAt:         t.AssignedAt,
		StartedAt:          t.StartedAt,
		ResolvedAt:         t.ResolvedAt,
		ClosedAt:           t.ClosedAt,
		UpdatedAt:          t.UpdatedAt,
	}
}

// AuditEntryResponse serializes an audit row.
type AuditEntryResponse struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	ActorID   *string   `json:"actor_id,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// FromAuditEntry converts the domain entity.
func FromAuditEntry(e *domain.AuditEntry) AuditEntryResponse {
	return AuditEntryResponse{
		ID:        e.ID,
		Action:    e.Action,
		ActorID:   e.ActorID,
		Detail:    e.Detail,
		CreatedAt: e.CreatedAt,
	}
}
