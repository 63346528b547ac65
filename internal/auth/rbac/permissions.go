package rbac

import "github.com/medisync/clinic-api/internal/model"

// Wildcard is the sentinel permission granted to super-roles; every
// check passes against it.
const Wildcard = "*"

// defaultPermissions is the fixed grant table keyed by the coarse role
// enumeration. Loaded once, never mutated at runtime; custom-role
// overrides are layered on top by the Evaluator.
var defaultPermissions = map[model.Role][]string{
	model.RoleDoctor: {
		model.PermPatientsRead,
		model.PermPatientsWrite,
		model.PermPrescriptionsCreate,
		model.PermPrescriptionsRead,
		model.PermAppointmentsManage,
		model.PermLabOrdersRead,
		model.PermProfileRead,
	},
	model.RoleNurse: {
		model.PermPatientsRead,
		model.PermVitalsRecord,
		model.PermPrescriptionsRead,
		model.PermAppointmentsManage,
		model.PermProfileRead,
	},
	model.RolePharmacist: {
		model.PermPrescriptionsRead,
		model.PermDispenseCreate,
		model.PermProfileRead,
	},
	model.RoleReceptionist: {
		model.PermPatientsRead,
		model.PermAppointmentsManage,
		model.PermInvoicesManage,
		model.PermProfileRead,
	},
	model.RoleLabTechnician: {
		model.PermLabOrdersRead,
		model.PermLabResultsWrite,
		model.PermProfileRead,
	},
	model.RolePhysiotherapist: {
		model.PermPatientsRead,
		model.PermTherapyManage,
		model.PermAppointmentsManage,
		model.PermProfileRead,
	},
	model.RoleUser: {
		model.PermProfileRead,
	},
}

// DefaultPermissions returns a copy of the grant list for a coarse role.
func DefaultPermissions(role model.Role) []string {
	perms := defaultPermissions[role]
	out := make([]string, len(perms))
	copy(out, perms)
	return out
}
