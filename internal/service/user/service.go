package user

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/medisync/clinic-api/internal/auth/password"
	"github.com/medisync/clinic-api/internal/model"
	"github.com/medisync/clinic-api/internal/repository"
	"github.com/medisync/clinic-api/internal/service/audit"
	apperrors "github.com/medisync/clinic-api/pkg/errors"
	"github.com/medisync/clinic-api/pkg/security"
)

type Service struct {
	repo     repository.UserRepository
	hasher   security.PasswordHasher
	recorder *audit.Recorder
}

func NewService(repo repository.UserRepository, hasher security.PasswordHasher, recorder *audit.Recorder) *Service {
	return &Service{repo: repo, hasher: hasher, recorder: recorder}
}

// Create provisions a user in the actor's organization. The initial
// password goes through the same strength rules as any other.
func (s *Service) Create(ctx context.Context, user *model.User, actor *model.Session) error {
	if !user.Role.Valid() {
		return apperrors.NewValidation("unknown role", map[string]string{"role": "unknown role"})
	}
	if res := password.Validate(user.Password); !res.Valid {
		return apperrors.NewValidation(res.Message, map[string]string{"password": res.Message})
	}

	hash, err := s.hasher.Hash(user.Password)
	if err != nil {
		return apperrors.NewInternal(fmt.Errorf("failed to hash password: %w", err))
	}
	user.Password = ""
	user.PasswordHash = hash
	user.Active = true
	user.OrganizationID = actor.SelectedOrganizationID

	if err := s.repo.Create(ctx, user); err != nil {
		return apperrors.NewInternal(fmt.Errorf("failed to create user: %w", err))
	}

	s.recorder.Record(audit.Entry{
		UserID:         actor.UserID,
		OrganizationID: user.OrganizationID,
		Action:         model.AuditActionCreate,
		EntityType:     model.AuditEntityUser,
		EntityID:       user.ID,
		Metadata:       map[string]interface{}{"username": user.Username, "role": user.Role},
	})
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, apperrors.NewNotFound("user", err)
	}
	return user, nil
}

// Update applies the partial update. Only fields present in the request
// change; role changes are validated against the closed enumeration.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req *model.UpdateUserRequest, actor *model.Session) (*model.User, error) {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, apperrors.NewNotFound("user", err)
	}

	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.Active != nil {
		user.Active = *req.Active
	}
	if req.Role != nil {
		role, err := model.ParseRole(*req.Role)
		if err != nil {
			return nil, apperrors.NewValidation("unknown role", map[string]string{"role": "unknown role"})
		}
		user.Role = role
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, apperrors.NewInternal(fmt.Errorf("failed to update user: %w", err))
	}

	s.recorder.Record(audit.Entry{
		UserID:         actor.UserID,
		OrganizationID: user.OrganizationID,
		Action:         model.AuditActionUpdate,
		EntityType:     model.AuditEntityUser,
		EntityID:       user.ID,
	})
	return user, nil
}

func (s *Service) List(ctx context.Context, orgID uuid.UUID, filter *model.UserFilter) ([]*model.User, error) {
	users, err := s.repo.List(ctx, orgID, filter)
	if err != nil {
		return nil, apperrors.NewInternal(fmt.Errorf("failed to list users: %w", err))
	}
	return users, nil
}
