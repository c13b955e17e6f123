package dto

import (
	"time"

	"github.com/fieldforcemrser2026/syntoniqa/internal/domain"
)

// LoginRequest payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse payload.
type LoginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	Operator  OperatorDTO `json:"operator"`
}

// OperatorDTO serializes the authenticated operator.
type OperatorDTO struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
}

// NotificationResponse serializes an in-app notification.
type NotificationResponse struct {
	ID          string                   `json:"id"`
	Kind        string                   `json:"kind"`
	Subject     string                   `json:"subject"`
	Body        string                   `json:"body"`
	ReferenceID *string                  `json:"reference_id,omitempty"`
	State       domain.NotificationState `json:"state"`
	SentAt      time.Time                `json:"sent_at"`
	ReadAt      *time.Time               `json:"read_at,omitempty"`
}

// FromNotification converts the domain entity.
func FromNotification(n *domain.Notification) NotificationResponse {
	return NotificationResponse{
		ID:          n.ID,
		Kind:        n.Kind,
		Subject:     n.Subject,
		Body:        n.Body,
		ReferenceID: n.ReferenceID,
		State:       n.State,
		SentAt:      n.SentAt,
		ReadAt:      n.ReadAt,
	}
}
