package model

import (
	"time"

	"github.com/google/uuid"
)

// User represents a system principal. Users are never hard-deleted;
// deactivation flips the Active flag.
type User struct {
	Base
	OrganizationID      uuid.UUID  `json:"organization_id" db:"organization_id"`
	Username            string     `json:"username" db:"username"`
	Email               string     `json:"email" db:"email"`
	Name                string     `json:"name" db:"name"`
	Password            string     `json:"password,omitempty" db:"-"`
	PasswordHash        string     `json:"-" db:"password_hash"`
	Role                Role       `json:"role" db:"role"`
	CustomRoleID        *uuid.UUID `json:"custom_role_id,omitempty" db:"custom_role_id"`
	Active              bool       `json:"active" db:"active"`
	LastLoginAt         *time.Time `json:"last_login_at" db:"last_login_at"`
	FailedLoginAttempts int        `json:"failed_login_attempts" db:"failed_login_attempts"`
	LockedUntil         *time.Time `json:"locked_until" db:"locked_until"`
}

// Locked reports whether the durable account lockout is in effect.
// This is the long-term counterpart to the in-memory attempt window.
func (u *User) Locked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}

// OrganizationMembership links a user to a secondary organization.
// The user's primary organization lives on the User row itself; at most
// one membership is flagged as default.
type OrganizationMembership struct {
	UserID         uuid.UUID `json:"user_id" db:"user_id"`
	OrganizationID uuid.UUID `json:"organization_id" db:"organization_id"`
	IsDefault      bool      `json:"is_default" db:"is_default"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// UserSummary is the principal view returned by login and profile
// endpoints. The secret hash and counters never leave the server.
type UserSummary struct {
	ID             uuid.UUID  `json:"id"`
	Username       string     `json:"username"`
	Email          string     `json:"email"`
	Name           string     `json:"name"`
	Role           Role       `json:"role"`
	OrganizationID uuid.UUID  `json:"organization_id"`
	LastLoginAt    *time.Time `json:"last_login_at,omitempty"`
}

// Summary projects the user onto its API-visible form.
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:             u.ID,
		Username:       u.Username,
		Email:          u.Email,
		Name:           u.Name,
		Role:           u.Role,
		OrganizationID: u.OrganizationID,
		LastLoginAt:    u.LastLoginAt,
	}
}

// UpdateUserRequest represents user update parameters
type UpdateUserRequest struct {
	Name   *string `json:"name"`
	Email  *string `json:"email" binding:"omitempty,email"`
	Active *bool   `json:"active"`
	Role   *string `json:"role" binding:"omitempty,oneof=super_admin admin doctor nurse pharmacist receptionist lab_technician physiotherapist user"`
}

// UserFilter represents user search parameters
type UserFilter struct {
	BaseFilter
	Role string `json:"role" form:"role"`
}
