package models

import "github.com/google/uuid"

// Role of the calling principal
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Principal is the verified caller supplied by the identity layer
type Principal struct {
	UserID uuid.UUID
	Role   Role
}

// IsAdmin reports whether the principal holds the ADMIN role
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}
