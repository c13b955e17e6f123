package domain

import "time"

// Role enumerates operator roles. The only policy built on top of roles is
// the elevated-privilege gate on selected transitions.
type Role string

const (
	RoleTechnician    Role = "TECHNICIAN"
	RoleAdministrator Role = "ADMINISTRATOR"
)

// Operator is a person who can authenticate and issue lifecycle commands.
type Operator struct {
	ID           string
	TenantID     string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	Active       bool
	CreatedAt    time.Time
}
