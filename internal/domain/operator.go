package domain

import "time"

// OperatorRole enumerates help-desk staff roles.
type OperatorRole string

const (
	OperatorRoleTechnician OperatorRole = "tecnico"
	OperatorRoleAdmin      OperatorRole = "admin"
)

// Operator is a help-desk staff account allowed to work tickets.
type Operator struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Role         OperatorRole
	LastSignedIn *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
