package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type AuditLog struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	UserID         uuid.UUID       `json:"user_id" db:"user_id"`
	OrganizationID uuid.UUID       `json:"organization_id" db:"organization_id"`
	Action         string          `json:"action" db:"action"`
	EntityType     string          `json:"entity_type" db:"entity_type"`
	EntityID       uuid.UUID       `json:"entity_id" db:"entity_id"`
	Metadata       json.RawMessage `json:"metadata" db:"metadata"`
	IPAddress      string          `json:"ip_address" db:"ip_address"`
	UserAgent      string          `json:"user_agent" db:"user_agent"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

const (
	// Action types
	AuditActionLogin            = "login"
	AuditActionLoginFailed      = "login_failed"
	AuditActionLockout          = "lockout"
	AuditActionLogout           = "logout"
	AuditActionPasswordChange   = "password_change"
	AuditActionPasswordReset    = "password_reset"
	AuditActionPermissionDenied = "permission_denied"
	AuditActionTenantDenied     = "tenant_denied"
	AuditActionOrgSelected      = "organization_selected"
	AuditActionCreate           = "create"
	AuditActionRead             = "read"
	AuditActionUpdate           = "update"

	// Entity types
	AuditEntityAuth         = "auth"
	AuditEntityUser         = "user"
	AuditEntityOrganization = "organization"
	AuditEntitySession      = "session"
)
