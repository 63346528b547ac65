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

type userRepository struct {
	BaseRepository
}

func NewUserRepository(base BaseRepository) repository.UserRepository {
	return &userRepository{base}
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `
		SELECT * FROM users
		WHERE id = $1 AND deleted_at IS NULL
	`
	var user model.User
	if err := r.get(ctx, "user.get", &user, query, id); err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `
		SELECT * FROM users
		WHERE lower(email) = lower($1) AND deleted_at IS NULL
	`
	var user model.User
	if err := r.get(ctx, "user.get_by_email", &user, query, email); err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &user, nil
}

func (r *userRepository) GetByIdentifier(ctx context.Context, identifier string) (*model.User, error) {
	query := `
		SELECT * FROM users
		WHERE (lower(username) = lower($1) OR lower(email) = lower($1))
		AND deleted_at IS NULL
	`
	var user model.User
	if err := r.get(ctx, "user.get_by_identifier", &user, query, identifier); err != nil {
		return nil, fmt.Errorf("failed to get user by identifier: %w", err)
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (
			id, organization_id, username, email, name, password_hash,
			role, custom_role_id, active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	user.ID = uuid.New()
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()

	return r.WithTx(ctx, "user.create", func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, query,
			user.ID,
			user.OrganizationID,
			user.Username,
			user.Email,
			user.Name,
			user.PasswordHash,
			user.Role,
			user.CustomRoleID,
			user.Active,
			user.CreatedAt,
			user.UpdatedAt,
		)
		return err
	})
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	query := `
		UPDATE users
		SET email = $1, name = $2, role = $3, custom_role_id = $4,
			active = $5, updated_at = $6
		WHERE id = $7 AND deleted_at IS NULL
	`
	user.UpdatedAt = time.Now()

	result, err := r.exec(ctx, "user.update", query,
		user.Email,
		user.Name,
		user.Role,
		user.CustomRoleID,
		user.Active,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user not found")
	}

	return nil
}

// RecordLoginSuccess clears the durable lockout state in the same
// statement that stamps the login, so a crash cannot leave a stale
// failure counter behind a fresh session.
func (r *userRepository) RecordLoginSuccess(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE users
		SET last_login_at = $1, failed_login_attempts = 0,
			locked_until = NULL, updated_at = NOW()
		WHERE id = $2 AND deleted_at IS NULL
	`
	_, err := r.exec(ctx, "user.login_success", query, at, id)
	if err != nil {
		return fmt.Errorf("failed to record login success: %w", err)
	}
	return nil
}

func (r *userRepository) RecordLoginFailure(ctx context.Context, id uuid.UUID, lockedUntil *time.Time) error {
	query := `
		UPDATE users
		SET failed_login_attempts = failed_login_attempts + 1,
			locked_until = COALESCE($1, locked_until), updated_at = NOW()
		WHERE id = $2 AND deleted_at IS NULL
	`
	_, err := r.exec(ctx, "user.login_failure", query, lockedUntil, id)
	if err != nil {
		return fmt.Errorf("failed to record login failure: %w", err)
	}
	return nil
}

func (r *userRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	query := `
		UPDATE users
		SET password_hash = $1, updated_at = NOW()
		WHERE id = $2 AND deleted_at IS NULL
	`
	result, err := r.exec(ctx, "user.update_password", query, passwordHash, id)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user not found")
	}

	return nil
}

func (r *userRepository) List(ctx context.Context, orgID uuid.UUID, filter *model.UserFilter) ([]*model.User, error) {
	query := `
		SELECT * FROM users
		WHERE organization_id = $1 AND deleted_at IS NULL
	`
	args := []interface{}{orgID}

	if filter != nil && filter.Role != "" {
		args = append(args, filter.Role)
		query += fmt.Sprintf(" AND role = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	var users []*model.User
	if err := r.selectMany(ctx, "user.list", &users, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (r *userRepository) ListMemberships(ctx context.Context, userID uuid.UUID) ([]model.OrganizationMembership, error) {
	query := `
		SELECT user_id, organization_id, is_default, created_at
		FROM organization_memberships
		WHERE user_id = $1
		ORDER BY created_at
	`
	var memberships []model.OrganizationMembership
	if err := r.selectMany(ctx, "user.list_memberships", &memberships, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	return memberships, nil
}
