package organization

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/medisync/clinic-api/internal/model"
	"github.com/medisync/clinic-api/internal/repository"
	"github.com/medisync/clinic-api/internal/service/audit"
	apperrors "github.com/medisync/clinic-api/pkg/errors"
)

// reservedSubdomains can never be claimed by a tenant; they collide
// with hostnames the platform itself answers on.
var reservedSubdomains = map[string]struct{}{
	"www":    {},
	"api":    {},
	"admin":  {},
	"app":    {},
	"status": {},
}

type Service struct {
	repo     repository.OrganizationRepository
	recorder *audit.Recorder
}

func NewService(repo repository.OrganizationRepository, recorder *audit.Recorder) *Service {
	return &Service{repo: repo, recorder: recorder}
}

func (s *Service) Create(ctx context.Context, req *model.CreateOrganizationRequest, actor *model.Session) (*model.Organization, error) {
	subdomain := strings.ToLower(req.Subdomain)
	if _, reserved := reservedSubdomains[subdomain]; reserved {
		return nil, apperrors.NewValidation("subdomain is reserved", map[string]string{"subdomain": "this subdomain is reserved"})
	}
	if existing, err := s.repo.GetActiveBySubdomain(ctx, subdomain); err == nil && existing != nil {
		return nil, apperrors.NewValidation("subdomain already in use", map[string]string{"subdomain": "this subdomain is taken"})
	}

	org := &model.Organization{
		Name:      req.Name,
		Subdomain: subdomain,
		Type:      req.Type,
		Active:    true,
	}
	if req.LogoURL != "" {
		org.LogoURL = &req.LogoURL
	}

	if err := s.repo.Create(ctx, org); err != nil {
		return nil, apperrors.NewInternal(fmt.Errorf("failed to create organization: %w", err))
	}

	s.recorder.Record(audit.Entry{
		UserID:         actor.UserID,
		OrganizationID: org.ID,
		Action:         model.AuditActionCreate,
		EntityType:     model.AuditEntityOrganization,
		EntityID:       org.ID,
		Metadata:       map[string]interface{}{"name": org.Name, "subdomain": org.Subdomain},
	})
	return org, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Organization, error) {
	org, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, apperrors.NewNotFound("organization", err)
	}
	return org, nil
}

func (s *Service) Update(ctx context.Context, org *model.Organization, actor *model.Session) error {
	if err := s.repo.Update(ctx, org); err != nil {
		return apperrors.NewInternal(fmt.Errorf("failed to update organization: %w", err))
	}
	s.recorder.Record(audit.Entry{
		UserID:         actor.UserID,
		OrganizationID: org.ID,
		Action:         model.AuditActionUpdate,
		EntityType:     model.AuditEntityOrganization,
		EntityID:       org.ID,
	})
	return nil
}

func (s *Service) List(ctx context.Context) ([]*model.Organization, error) {
	orgs, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperrors.NewInternal(fmt.Errorf("failed to list organizations: %w", err))
	}
	return orgs, nil
}
