package model

import "time"

// UserRole represents the role of a user in the system.
type UserRole string

const (
	// RoleUser is a researcher who browses workflows and tracks runs.
	RoleUser UserRole = "user"
	// RoleAdmin can author projects, workflows, assays, and steps.
	RoleAdmin UserRole = "admin"
)

// User represents a LabFlow account.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	Role         UserRole  `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// IsAdmin returns true if the user has admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
