package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/medisync/clinic-api/internal/model"
	"github.com/medisync/clinic-api/internal/repository"
)

type rbacRepository struct {
	BaseRepository
}

func NewRBACRepository(base BaseRepository) repository.RBACRepository {
	return &rbacRepository{base}
}

func (r *rbacRepository) GetCustomRole(ctx context.Context, id uuid.UUID) (*model.CustomRole, error) {
	query := `
		SELECT * FROM custom_roles
		WHERE id = $1 AND deleted_at IS NULL
	`
	var role model.CustomRole
	if err := r.get(ctx, "rbac.get_custom_role", &role, query, id); err != nil {
		return nil, fmt.Errorf("failed to get custom role: %w", err)
	}
	return &role, nil
}

// LoadOverrides reads the whole custom-role permission table. Called
// once at startup; the evaluator treats the result as immutable.
func (r *rbacRepository) LoadOverrides(ctx context.Context) (map[uuid.UUID][]string, error) {
	query := `
		SELECT crp.custom_role_id, crp.permission
		FROM custom_role_permissions crp
		JOIN custom_roles cr ON cr.id = crp.custom_role_id
		WHERE cr.deleted_at IS NULL
		ORDER BY crp.custom_role_id
	`

	var rows []model.CustomRolePermission
	if err := r.selectMany(ctx, "rbac.load_overrides", &rows, query); err != nil {
		return nil, fmt.Errorf("failed to load permission overrides: %w", err)
	}

	overrides := make(map[uuid.UUID][]string)
	for _, row := range rows {
		overrides[row.CustomRoleID] = append(overrides[row.CustomRoleID], row.Permission)
	}
	return overrides, nil
}
