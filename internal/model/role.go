package model

import "fmt"

// Role is the closed coarse-role enumeration. Free-form role strings are
// rejected at the boundary; everything downstream matches on this type.
type Role string

const (
	RoleSuperAdmin      Role = "super_admin"
	RoleAdmin           Role = "admin"
	RoleDoctor          Role = "doctor"
	RoleNurse           Role = "nurse"
	RolePharmacist      Role = "pharmacist"
	RoleReceptionist    Role = "receptionist"
	RoleLabTechnician   Role = "lab_technician"
	RolePhysiotherapist Role = "physiotherapist"
	RoleUser            Role = "user"
)

var roles = map[Role]struct{}{
	RoleSuperAdmin:      {},
	RoleAdmin:           {},
	RoleDoctor:          {},
	RoleNurse:           {},
	RolePharmacist:      {},
	RoleReceptionist:    {},
	RoleLabTechnician:   {},
	RolePhysiotherapist: {},
	RoleUser:            {},
}

// ParseRole converts a stored role string into the enumeration.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if _, ok := roles[r]; !ok {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

func (r Role) Valid() bool {
	_, ok := roles[r]
	return ok
}

func (r Role) String() string {
	return string(r)
}

// IsSuperRole reports whether the role bypasses permission checks
// entirely. Both admin tiers are wildcard roles; tenant membership is
// still enforced separately for RoleAdmin.
func (r Role) IsSuperRole() bool {
	return r == RoleSuperAdmin || r == RoleAdmin
}
