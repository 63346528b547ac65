package tenant

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medisync/clinic-api/internal/model"
	apperrors "github.com/medisync/clinic-api/pkg/errors"
)

type mockOrgRepo struct {
	bySubdomain map[string]*model.Organization
	byID        map[uuid.UUID]*model.Organization
}

func (m *mockOrgRepo) Get(ctx context.Context, id uuid.UUID) (*model.Organization, error) {
	if org, ok := m.byID[id]; ok {
		return org, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockOrgRepo) GetActive(ctx context.Context, id uuid.UUID) (*model.Organization, error) {
	if org, ok := m.byID[id]; ok && org.Active {
		return org, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockOrgRepo) GetActiveBySubdomain(ctx context.Context, sub string) (*model.Organization, error) {
	if org, ok := m.bySubdomain[sub]; ok && org.Active {
		return org, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockOrgRepo) Create(ctx context.Context, org *model.Organization) error { return nil }
func (m *mockOrgRepo) Update(ctx context.Context, org *model.Organization) error { return nil }
func (m *mockOrgRepo) List(ctx context.Context) ([]*model.Organization, error)   { return nil, nil }

func newOrg(name, subdomain string, active bool) *model.Organization {
	org := &model.Organization{
		Name:      name,
		Subdomain: subdomain,
		Type:      model.OrgTypeClinic,
		Active:    active,
	}
	org.ID = uuid.New()
	return org
}

func newTestResolver(t *testing.T) (*Resolver, *mockOrgRepo) {
	t.Helper()
	repo := &mockOrgRepo{
		bySubdomain: make(map[string]*model.Organization),
		byID:        make(map[uuid.UUID]*model.Organization),
	}
	return NewResolver(repo, "medisync.example", zerolog.Nop()), repo
}

func addOrg(repo *mockOrgRepo, org *model.Organization) {
	repo.bySubdomain[org.Subdomain] = org
	repo.byID[org.ID] = org
}

func TestResolveBySubdomain(t *testing.T) {
	r, repo := newTestResolver(t)
	clinic1 := newOrg("clinic1", "clinic1", true)
	addOrg(repo, clinic1)

	org, source, err := r.Resolve(context.Background(), Request{Host: "clinic1.medisync.example"})
	require.NoError(t, err)
	require.NotNil(t, org)
	assert.Equal(t, clinic1.ID, org.ID)
	assert.Equal(t, SourceSubdomain, source)
}

func TestResolveMatchesSubdomainNotName(t *testing.T) {
	r, repo := newTestResolver(t)
	clinic := newOrg("Northside Family Clinic", "northside", true)
	addOrg(repo, clinic)

	org, source, err := r.Resolve(context.Background(), Request{Host: "northside.medisync.example"})
	require.NoError(t, err)
	require.NotNil(t, org)
	assert.Equal(t, clinic.ID, org.ID)
	assert.Equal(t, SourceSubdomain, source)

	// The display name is not a resolution key.
	org, source, err = r.Resolve(context.Background(), Request{Host: "northside-family-clinic.medisync.example"})
	require.NoError(t, err)
	assert.Nil(t, org)
	assert.Equal(t, SourceNone, source)
}

func TestResolveSubdomainStripsPort(t *testing.T) {
	r, repo := newTestResolver(t)
	clinic1 := newOrg("clinic1", "clinic1", true)
	addOrg(repo, clinic1)

	org, _, err := r.Resolve(context.Background(), Request{Host: "clinic1.medisync.example:8080"})
	require.NoError(t, err)
	require.NotNil(t, org)
	assert.Equal(t, clinic1.ID, org.ID)
}

func TestResolveNeverMatchesWWWOrApex(t *testing.T) {
	r, repo := newTestResolver(t)
	addOrg(repo, newOrg("www", "www", true))

	for _, host := range []string{"www.medisync.example", "medisync.example"} {
		org, source, err := r.Resolve(context.Background(), Request{Host: host})
		require.NoError(t, err, host)
		assert.Nil(t, org, host)
		assert.Equal(t, SourceNone, source, host)
	}
}

func TestResolveIgnoresInactiveOrganization(t *testing.T) {
	r, repo := newTestResolver(t)
	addOrg(repo, newOrg("closed", "closed", false))

	org, _, err := r.Resolve(context.Background(), Request{Host: "closed.medisync.example"})
	require.NoError(t, err)
	assert.Nil(t, org)
}

func TestResolveByHeader(t *testing.T) {
	r, repo := newTestResolver(t)
	clinic2 := newOrg("clinic2", "clinic2", true)
	addOrg(repo, clinic2)

	org, source, err := r.Resolve(context.Background(), Request{
		Host:     "medisync.example",
		TenantID: clinic2.ID.String(),
	})
	require.NoError(t, err)
	require.NotNil(t, org)
	assert.Equal(t, clinic2.ID, org.ID)
	assert.Equal(t, SourceHeader, source)
}

func TestResolveHeaderMalformed(t *testing.T) {
	r, _ := newTestResolver(t)

	_, _, err := r.Resolve(context.Background(), Request{TenantID: "not-a-uuid"})
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrBadRequest, appErr.Code)
}

func TestResolveHeaderUnknownTenant(t *testing.T) {
	r, _ := newTestResolver(t)

	_, _, err := r.Resolve(context.Background(), Request{TenantID: uuid.NewString()})
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrBadRequest, appErr.Code)
}

func TestResolveFallsBackToPrincipal(t *testing.T) {
	r, repo := newTestResolver(t)
	home := newOrg("home", "home", true)
	addOrg(repo, home)

	sess := &model.Session{
		UserID:                 uuid.New(),
		OrganizationID:         home.ID,
		SelectedOrganizationID: home.ID,
	}
	org, source, err := r.Resolve(context.Background(), Request{Host: "medisync.example", Session: sess})
	require.NoError(t, err)
	require.NotNil(t, org)
	assert.Equal(t, home.ID, org.ID)
	assert.Equal(t, SourcePrincipal, source)
}

func TestSubdomainPrecedesHeaderAndPrincipal(t *testing.T) {
	r, repo := newTestResolver(t)
	bySub := newOrg("clinic1", "clinic1", true)
	byHeader := newOrg("clinic2", "clinic2", true)
	addOrg(repo, bySub)
	addOrg(repo, byHeader)

	org, source, err := r.Resolve(context.Background(), Request{
		Host:     "clinic1.medisync.example",
		TenantID: byHeader.ID.String(),
	})
	require.NoError(t, err)
	assert.Equal(t, bySub.ID, org.ID)
	assert.Equal(t, SourceSubdomain, source)
}

func TestValidateMembershipOrdering(t *testing.T) {
	org5 := newOrg("org5", "org5", true)
	org7 := newOrg("org7", "org7", true)

	nurse := &model.Session{
		UserID:                 uuid.New(),
		Role:                   model.RoleNurse,
		OrganizationID:         org5.ID,
		SelectedOrganizationID: org5.ID,
	}

	// Unauthenticated beats everything else.
	err := ValidateMembership(nil, org5)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrUnauthenticated, appErr.Code)

	// Authenticated without tenant context.
	err = ValidateMembership(nurse, nil)
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrTenantContextMissing, appErr.Code)

	// Wrong tenant is forbidden regardless of permission set.
	err = ValidateMembership(nurse, org7)
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrForbidden, appErr.Code)

	assert.NoError(t, ValidateMembership(nurse, org5))
}

func TestValidateMembershipNoAdminExemption(t *testing.T) {
	org := newOrg("clinic1", "clinic1", true)
	other := newOrg("clinic2", "clinic2", true)

	admin := &model.Session{
		UserID:                 uuid.New(),
		Role:                   model.RoleSuperAdmin,
		OrganizationID:         other.ID,
		SelectedOrganizationID: other.ID,
	}
	var appErr *apperrors.AppError
	err := ValidateMembership(admin, org)
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrForbidden, appErr.Code)
}

func TestValidateMembershipSecondaryMembership(t *testing.T) {
	primary := newOrg("primary", "primary", true)
	secondary := newOrg("secondary", "secondary", true)

	s := &model.Session{
		UserID:                 uuid.New(),
		Role:                   model.RoleDoctor,
		OrganizationID:         primary.ID,
		SelectedOrganizationID: primary.ID,
		Memberships:            []uuid.UUID{secondary.ID},
	}
	assert.NoError(t, ValidateMembership(s, secondary))
}
