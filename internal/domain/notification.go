package domain

import "time"

// NotificationState enumerates delivery states for in-app notifications.
type NotificationState string

const (
	NotificationStateSent NotificationState = "sent"
	NotificationStateRead NotificationState = "read"
)

// RecipientAdministrators is the sentinel recipient id for notifications
// addressed to every administrator rather than a single person.
const RecipientAdministrators = "ROLE_ADMIN"

// Notification is an in-app notification row written by the notifier's
// in-app channel. Escalation rows carry the dedupe key that guarded them.
type Notification struct {
	ID          string
	TenantID    string
	Kind        string
	Subject     string
	Body        string
	RecipientID string
	ReferenceID *string
	DedupeKey   *string
	State       NotificationState
	SentAt      time.Time
	ReadAt      *time.Time
}

// AuditEntry records a lifecycle action against an entity. The write is
// best-effort: a failed audit insert never fails the operation it records.
type AuditEntry struct {
	ID         string
	EntityKind string
	EntityID   string
	Action     string
	ActorID    *string
	Detail     string
	CreatedAt  time.Time
}
