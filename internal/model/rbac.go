package model

import (
	"github.com/google/uuid"
)

// CustomRole is the fine-grained role indirection layered atop the
// coarse Role enumeration. A user carrying a CustomRoleID gets that
// role's permission set instead of the coarse-role default.
type CustomRole struct {
	Base
	OrganizationID uuid.UUID `json:"organization_id" db:"organization_id"`
	Name           string    `json:"name" db:"name"`
	Description    string    `json:"description" db:"description"`
}

// CustomRolePermission maps a custom role to one named permission.
type CustomRolePermission struct {
	CustomRoleID uuid.UUID `json:"custom_role_id" db:"custom_role_id"`
	Permission   string    `json:"permission" db:"permission"`
}

// Permission names gating protected operations. Handlers reference
// these constants rather than literals.
const (
	PermPatientsRead        = "patients.read"
	PermPatientsWrite       = "patients.write"
	PermPrescriptionsCreate = "prescriptions.create"
	PermPrescriptionsRead   = "prescriptions.read"
	PermDispenseCreate      = "dispense.create"
	PermVitalsRecord        = "vitals.record"
	PermAppointmentsManage  = "appointments.manage"
	PermLabOrdersRead       = "lab_orders.read"
	PermLabResultsWrite     = "lab_results.write"
	PermTherapyManage       = "therapy.manage"
	PermInvoicesManage      = "invoices.manage"
	PermUsersRead           = "users.read"
	PermUsersManage         = "users.manage"
	PermUsersDelete         = "users.delete"
	PermOrganizationsManage = "organizations.manage"
	PermAuditRead           = "audit.read"
	PermProfileRead         = "profile.read"
)
