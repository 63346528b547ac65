package rbac

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/medisync/clinic-api/internal/model"
)

func sessionWithRole(role model.Role) *model.Session {
	return &model.Session{
		UserID:         uuid.New(),
		Role:           role,
		OrganizationID: uuid.New(),
	}
}

func TestDoctorDefaults(t *testing.T) {
	e := NewEvaluator(nil)
	s := sessionWithRole(model.RoleDoctor)

	assert.True(t, e.Has(s, model.PermPrescriptionsCreate))
	assert.True(t, e.Has(s, model.PermPatientsRead))
	assert.False(t, e.Has(s, model.PermUsersDelete))
	assert.False(t, e.Has(s, model.PermDispenseCreate))
}

func TestSuperRolesBypassEverything(t *testing.T) {
	e := NewEvaluator(nil)

	for _, role := range []model.Role{model.RoleSuperAdmin, model.RoleAdmin} {
		s := sessionWithRole(role)
		assert.True(t, e.Has(s, model.PermUsersDelete), role)
		assert.True(t, e.Has(s, "anything.at.all"), role)
		assert.Equal(t, []string{Wildcard}, e.EffectivePermissions(s), role)
	}
}

func TestUnknownRoleDeniesByDefault(t *testing.T) {
	e := NewEvaluator(nil)
	s := sessionWithRole(model.Role("intern"))

	assert.Empty(t, e.EffectivePermissions(s))
	assert.False(t, e.Has(s, model.PermProfileRead))
}

func TestCustomRoleOverrideReplacesDefaults(t *testing.T) {
	customID := uuid.New()
	e := NewEvaluator(map[uuid.UUID][]string{
		customID: {model.PermPatientsRead},
	})

	s := sessionWithRole(model.RoleDoctor)
	s.CustomRoleID = &customID

	// The override replaces the doctor defaults entirely, including
	// grants the coarse role would have carried.
	assert.True(t, e.Has(s, model.PermPatientsRead))
	assert.False(t, e.Has(s, model.PermPrescriptionsCreate))
	assert.Equal(t, []string{model.PermPatientsRead}, e.EffectivePermissions(s))
}

func TestCustomRoleWithoutOverrideFallsBack(t *testing.T) {
	orphan := uuid.New()
	e := NewEvaluator(nil)

	s := sessionWithRole(model.RoleNurse)
	s.CustomRoleID = &orphan

	assert.True(t, e.Has(s, model.PermVitalsRecord))
	assert.ElementsMatch(t, DefaultPermissions(model.RoleNurse), e.EffectivePermissions(s))
}

func TestHasAnyAndHasAll(t *testing.T) {
	e := NewEvaluator(nil)
	s := sessionWithRole(model.RoleNurse)

	assert.True(t, e.HasAny(s, []string{model.PermUsersDelete, model.PermVitalsRecord}))
	assert.False(t, e.HasAny(s, []string{model.PermUsersDelete, model.PermDispenseCreate}))
	assert.False(t, e.HasAny(s, nil))

	assert.True(t, e.HasAll(s, []string{model.PermPatientsRead, model.PermVitalsRecord}))
	assert.False(t, e.HasAll(s, []string{model.PermPatientsRead, model.PermUsersDelete}))
	assert.True(t, e.HasAll(s, nil))
}

func TestNilSessionDenies(t *testing.T) {
	e := NewEvaluator(nil)

	assert.False(t, e.Has(nil, model.PermProfileRead))
	assert.False(t, e.HasAll(nil, nil))
	assert.False(t, e.HasRole(nil, model.RoleDoctor))
	assert.Nil(t, e.EffectivePermissions(nil))
}

func TestRoleGuards(t *testing.T) {
	e := NewEvaluator(nil)

	doctor := sessionWithRole(model.RoleDoctor)
	admin := sessionWithRole(model.RoleAdmin)

	assert.True(t, e.HasRole(doctor, model.RoleDoctor))
	assert.False(t, e.HasRole(doctor, model.RoleNurse))
	assert.True(t, e.HasRole(admin, model.RoleNurse), "super-role bypass applies to role guards")

	assert.True(t, e.HasAnyRole(doctor, []model.Role{model.RoleNurse, model.RoleDoctor}))
	assert.False(t, e.HasAnyRole(doctor, []model.Role{model.RoleNurse, model.RolePharmacist}))
	assert.True(t, e.HasAnyRole(admin, nil))
}
