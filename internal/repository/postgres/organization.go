package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/medisync/clinic-api/internal/model"
	"github.com/medisync/clinic-api/internal/repository"
)

type organizationRepository struct {
	BaseRepository
}

func NewOrganizationRepository(base BaseRepository) repository.OrganizationRepository {
	return &organizationRepository{base}
}

func (r *organizationRepository) Create(ctx context.Context, org *model.Organization) error {
	query := `
		INSERT INTO organizations (
			id, name, subdomain, type, active, logo_url, theme_hex,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	org.ID = uuid.New()
	org.CreatedAt = time.Now()
	org.UpdatedAt = time.Now()

	return r.WithTx(ctx, "organization.create", func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, query,
			org.ID,
			org.Name,
			org.Subdomain,
			org.Type,
			org.Active,
			org.LogoURL,
			org.ThemeHex,
			org.CreatedAt,
			org.UpdatedAt,
		)
		return err
	})
}

func (r *organizationRepository) Get(ctx context.Context, id uuid.UUID) (*model.Organization, error) {
	query := `
		SELECT * FROM organizations
		WHERE id = $1 AND deleted_at IS NULL
	`
	var org model.Organization
	if err := r.get(ctx, "organization.get", &org, query, id); err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return &org, nil
}

func (r *organizationRepository) GetActive(ctx context.Context, id uuid.UUID) (*model.Organization, error) {
	query := `
		SELECT * FROM organizations
		WHERE id = $1 AND active AND deleted_at IS NULL
	`
	var org model.Organization
	if err := r.get(ctx, "organization.get_active", &org, query, id); err != nil {
		return nil, fmt.Errorf("failed to get active organization: %w", err)
	}
	return &org, nil
}

func (r *organizationRepository) GetActiveBySubdomain(ctx context.Context, subdomain string) (*model.Organization, error) {
	query := `
		SELECT * FROM organizations
		WHERE lower(subdomain) = lower($1) AND active AND deleted_at IS NULL
	`
	var org model.Organization
	if err := r.get(ctx, "organization.get_by_subdomain", &org, query, subdomain); err != nil {
		return nil, fmt.Errorf("failed to get organization by subdomain: %w", err)
	}
	return &org, nil
}

func (r *organizationRepository) Update(ctx context.Context, org *model.Organization) error {
	query := `
		UPDATE organizations
		SET name = $1, type = $2, active = $3, logo_url = $4,
			theme_hex = $5, updated_at = $6
		WHERE id = $7 AND deleted_at IS NULL
	`
	org.UpdatedAt = time.Now()

	result, err := r.exec(ctx, "organization.update", query,
		org.Name,
		org.Type,
		org.Active,
		org.LogoURL,
		org.ThemeHex,
		org.UpdatedAt,
		org.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update organization: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("organization not found")
	}

	return nil
}

func (r *organizationRepository) List(ctx context.Context) ([]*model.Organization, error) {
	query := `
		SELECT * FROM organizations
		WHERE deleted_at IS NULL
		ORDER BY created_at DESC
	`
	var orgs []*model.Organization
	if err := r.selectMany(ctx, "organization.list", &orgs, query); err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	return orgs, nil
}
