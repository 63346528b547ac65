package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Auth errors shared across service and handler layers. Credential and
// account-existence failures are deliberately indistinguishable.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountInactive    = errors.New("account is not active")
)

// LoginRequest carries the identifier (username or email) and secret.
type LoginRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

// LoginResponse reports the principal summary and whether the caller
// must pick one of several organization memberships before tenant-scoped
// work can begin.
type LoginResponse struct {
	User                 UserSummary `json:"user"`
	RequiresOrgSelection bool        `json:"requires_org_selection"`
	Organizations        []uuid.UUID `json:"organizations,omitempty"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

type SelectOrganizationRequest struct {
	OrganizationID uuid.UUID `json:"organization_id" binding:"required"`
}

// SessionStatus is returned for client-side UX only; the server-side
// inactivity timer remains the security boundary.
type SessionStatus struct {
	ExpiresIn    int64     `json:"expires_in_seconds"`
	LastActivity time.Time `json:"last_activity"`
}
