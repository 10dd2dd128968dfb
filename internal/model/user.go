// Package model defines the data structures used throughout the application.
package model

import "time"

// Role is the server-held authorization level of a user.
type Role string

const (
	RoleStudent    Role = "student"
	RoleInstructor Role = "instructor"
	RoleAdmin      Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleInstructor, RoleAdmin:
		return true
	}
	return false
}

// UserStatus is the account state an admin can toggle.
type UserStatus string

const (
	UserActive    UserStatus = "active"
	UserSuspended UserStatus = "suspended"
)

func (s UserStatus) Valid() bool {
	return s == UserActive || s == UserSuspended
}

// User is a marketplace account, keyed by email.
//
// The role stored here is the only source of truth for authorization; the
// bearer token only proves which email is calling.
type User struct {
	ID        string     `json:"_id"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	Photo     string     `json:"photo"`
	Role      Role       `json:"role"`
	Status    UserStatus `json:"status"`
	CreatedAt time.Time  `json:"createdAt"`
}
