// Package users manages account profiles, roles, and account status. The
// identity itself lives with the hosted auth provider; this package owns
// everything the provider does not: approval state, role assignment, and
// the queries other packages need to resolve recipients and permissions.
package users

import (
	"time"

	"github.com/google/uuid"
)

// Roles, ordered by privilege.
const (
	RoleUser      = "user"
	RoleAdmin     = "admin"
	RoleHeadAdmin = "head_admin"
)

// Account statuses.
const (
	StatusPending     = "pending"
	StatusApproved    = "approved"
	StatusActive      = "active"
	StatusRejected    = "rejected"
	StatusDeactivated = "deactivated"
)

// User is an account profile row.
type User struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Role        string    `json:"role"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CanAct reports whether the account has been let in by an admin. Pending
// accounts may sign in and see their own profile but cannot book.
func (u User) CanAct() bool {
	return u.Status == StatusApproved || u.Status == StatusActive
}

// Blocked reports whether the account is barred from the service entirely.
func (u User) Blocked() bool {
	return u.Status == StatusRejected || u.Status == StatusDeactivated
}

// IsAdmin reports whether the account holds an admin role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin || u.Role == RoleHeadAdmin
}

// ValidRole reports whether the string names a known role.
func ValidRole(role string) bool {
	switch role {
	case RoleUser, RoleAdmin, RoleHeadAdmin:
		return true
	}
	return false
}

// ValidStatus reports whether the string names a known status.
func ValidStatus(status string) bool {
	switch status {
	case StatusPending, StatusApproved, StatusActive, StatusRejected, StatusDeactivated:
		return true
	}
	return false
}

// ProfileInput is the self-service profile update payload.
type ProfileInput struct {
	DisplayName string `json:"display_name" validate:"max=200"`
	Phone       string `json:"phone" validate:"max=50"`
}
