package dto

import (
	"time"

	"github.com/fieldforcemrser2026/syntoniqa/internal/domain"
)

// CreateInterventionRequest payload.
type CreateInterventionRequest struct {
	LinkedTicket   *string    `json:"linked_ticket"`
	Technician     *string    `json:"technician"`
	ClientID       *string    `json:"client_id"`
	ScheduledDate  time.Time  `json:"scheduled_date"`
	ScheduledStart *time.Time `json:"scheduled_start"`
	Notes          string     `json:"notes"`
}

// TransitionInterventionRequest payload.
type TransitionInterventionRequest struct {
	Target string `json:"target"`
}

// InterventionResponse serializes an intervention.
type InterventionResponse struct {
	ID             string                   `json:"id"`
	LinkedTicket   *string                  `json:"linked_ticket,omitempty"`
	Technician     *string                  `json:"technician,omitempty"`
	ClientID       *string                  `json:"client_id,omitempty"`
	State          domain.InterventionState `json:"state"`
	ScheduledDate  time.Time                `json:"scheduled_date"`
	ScheduledStart *time.Time               `json:"scheduled_start,omitempty"`
	Notes          string                   `json:"notes,omitempty"`
	CompletedAt    *time.Time               `json:"completed_at,omitempty"`
	UpdatedAt      time.Time                `json:"updated_at"`
}

// FromIntervention converts the domain entity.
func FromIntervention(iv *domain.Intervention) InterventionResponse {
	return InterventionResponse{
		ID:             iv.ID,
		LinkedTicket:   iv.LinkedTicket,
		Technician:     iv.Technician,
		ClientID:       iv.ClientID,
		State:          iv.State,
		ScheduledDate:  iv.ScheduledDate,
		ScheduledStart: iv.ScheduledStart,
		Notes:          iv.Notes,
		CompletedAt:    iv.CompletedAt,
		UpdatedAt:      iv.UpdatedAt,
	}
}
