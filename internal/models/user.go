// internal/models/user.go
package models

import "time"

// Role identifies what a user is allowed to do. The numeric levels of the
// legacy system map onto these names; authorization decisions go through the
// workflow policy table, never through level comparisons.
type Role string

const (
	RoleApplicant Role = "applicant"
	RoleReviewer  Role = "reviewer"
	RoleAgent     Role = "agent"
	RoleAdmin     Role = "admin"
)

// ValidRole reports whether r is one of the known roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleApplicant, RoleReviewer, RoleAgent, RoleAdmin:
		return true
	}
	return false
}

// User is an account holder. PasswordHash is bcrypt and never serialized.
type User struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	Name         string    `json:"name" db:"name"`
	Phone        string    `json:"phone,omitempty" db:"phone"`
	Role         Role      `json:"role" db:"role"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}
