package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/medisync/clinic-api/internal/model"
)

// UserRepository persists principals. Login bookkeeping updates are
// split into dedicated methods so the durable counters change
// atomically with their trigger.
type UserRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// GetByIdentifier matches username or email.
	GetByIdentifier(ctx context.Context, identifier string) (*model.User, error)
	Create(ctx context.Context, user *model.User) error
	Update(ctx context.Context, user *model.User) error
	// RecordLoginSuccess sets last_login_at, zeroes the failure counter
	// and clears locked_until in one statement.
	RecordLoginSuccess(ctx context.Context, id uuid.UUID, at time.Time) error
	// RecordLoginFailure increments the failure counter and, when
	// lockedUntil is non-nil, arms the durable account lockout.
	RecordLoginFailure(ctx context.Context, id uuid.UUID, lockedUntil *time.Time) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	List(ctx context.Context, orgID uuid.UUID, filter *model.UserFilter) ([]*model.User, error)
	ListMemberships(ctx context.Context, userID uuid.UUID) ([]model.OrganizationMembership, error)
}

// OrganizationRepository persists tenants.
type OrganizationRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Organization, error)
	// GetActive returns the organization only when its active flag is set.
	GetActive(ctx context.Context, id uuid.UUID) (*model.Organization, error)
	GetActiveBySubdomain(ctx context.Context, subdomain string) (*model.Organization, error)
	Create(ctx context.Context, org *model.Organization) error
	Update(ctx context.Context, org *model.Organization) error
	List(ctx context.Context) ([]*model.Organization, error)
}

// TokenRepository tracks outstanding password-reset grants by token id,
// enforcing single use.
type TokenRepository interface {
	StoreResetToken(ctx context.Context, userID uuid.UUID, jti string, expiry time.Time) error
	// ConsumeResetToken marks the token used and returns its user; a
	// second consume of the same jti fails.
	ConsumeResetToken(ctx context.Context, jti string) (uuid.UUID, error)
}

// RBACRepository loads the custom-role override table.
type RBACRepository interface {
	GetCustomRole(ctx context.Context, id uuid.UUID) (*model.CustomRole, error)
	// LoadOverrides returns the full custom-role permission table,
	// consumed once at startup into the immutable evaluator.
	LoadOverrides(ctx context.Context) (map[uuid.UUID][]string, error)
}

// AuditRepository is the durable end of the audit sink.
type AuditRepository interface {
	Create(ctx context.Context, log *model.AuditLog) error
	ListWithPagination(ctx context.Context, filters map[string]interface{}) ([]*model.AuditLog, int64, error)
	Cleanup(ctx context.Context, before time.Time) (int64, error)
}
