package tenant

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/medisync/clinic-api/internal/model"
	"github.com/medisync/clinic-api/internal/repository"
	apperrors "github.com/medisync/clinic-api/pkg/errors"
)

// Source identifies which mechanism resolved the tenant.
type Source string

const (
	SourceSubdomain Source = "subdomain"
	SourceHeader    Source = "header"
	SourcePrincipal Source = "principal"
	SourceNone      Source = "none"
)

// HeaderTenantID is the explicit tenant-identifier header.
const HeaderTenantID = "X-Tenant-Id"

const (
	cacheTTL        = 5 * time.Minute
	cacheCleanupTTL = 15 * time.Minute
)

// Request carries the per-request inputs the resolver inspects.
type Request struct {
	Host     string
	TenantID string // raw X-Tenant-Id header value
	Session  *model.Session
}

// Resolver determines the active organization for a request.
//
// Precedence, first match wins: origin subdomain (apex and "www"
// excluded), explicit X-Tenant-Id header, then the authenticated
// principal's own organization. Only active organizations resolve.
type Resolver struct {
	orgs   repository.OrganizationRepository
	apex   string
	cache  *cache.Cache
	logger zerolog.Logger
}

func NewResolver(orgs repository.OrganizationRepository, apexDomain string, logger zerolog.Logger) *Resolver {
	return &Resolver{
		orgs:   orgs,
		apex:   strings.ToLower(strings.TrimSuffix(apexDomain, ".")),
		cache:  cache.New(cacheTTL, cacheCleanupTTL),
		logger: logger,
	}
}

// Resolve walks the precedence chain. A nil organization with a nil
// error means no mechanism applied; the caller decides whether that is
// fatal for the route.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*model.Organization, Source, error) {
	if sub := r.subdomain(req.Host); sub != "" {
		if org := r.lookupBySubdomain(ctx, sub); org != nil {
			return org, SourceSubdomain, nil
		}
		r.logger.Debug().Str("subdomain", sub).Msg("subdomain did not match an active organization")
	}

	if req.TenantID != "" {
		id, err := uuid.Parse(req.TenantID)
		if err != nil {
			return nil, SourceHeader, apperrors.NewBadRequest("invalid "+HeaderTenantID+" header", err)
		}
		if org := r.lookupByID(ctx, id); org != nil {
			return org, SourceHeader, nil
		}
		return nil, SourceHeader, apperrors.NewBadRequest("unknown or inactive tenant", nil)
	}

	if req.Session != nil {
		if org := r.lookupByID(ctx, req.Session.SelectedOrganizationID); org != nil {
			return org, SourcePrincipal, nil
		}
	}

	return nil, SourceNone, nil
}

// ValidateMembership is the mandatory second gate before tenant-scoped
// reads or writes. Order is fixed: unauthenticated first, then missing
// tenant context, then the membership check itself. Admin roles get no
// exemption here; cross-tenant routes opt out explicitly instead, so
// isolation and permission stay independently auditable.
func ValidateMembership(s *model.Session, org *model.Organization) error {
	if s == nil {
		return apperrors.NewUnauthenticated(nil)
	}
	if org == nil {
		return apperrors.NewTenantContextMissing()
	}
	if !s.MemberOf(org.ID) {
		return apperrors.NewForbidden("not a member of this organization", nil, nil)
	}
	return nil
}

// subdomain extracts the first label of the host when it is a true
// subdomain of the apex. The bare apex and the literal "www" label
// never resolve.
func (r *Resolver) subdomain(host string) string {
	if host == "" {
		return ""
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(strings.TrimSuffix(host, "."))

	if r.apex == "" || host == r.apex {
		return ""
	}
	suffix := "." + r.apex
	if !strings.HasSuffix(host, suffix) {
		return ""
	}
	label := strings.TrimSuffix(host, suffix)
	if label == "" || label == "www" || strings.Contains(label, ".") {
		return ""
	}
	return label
}

func (r *Resolver) lookupBySubdomain(ctx context.Context, sub string) *model.Organization {
	if v, found := r.cache.Get("sub:" + sub); found {
		return v.(*model.Organization)
	}
	org, err := r.orgs.GetActiveBySubdomain(ctx, sub)
	if err != nil || org == nil {
		return nil
	}
	r.cache.Set("sub:"+sub, org, cache.DefaultExpiration)
	return org
}

func (r *Resolver) lookupByID(ctx context.Context, id uuid.UUID) *model.Organization {
	if v, found := r.cache.Get("id:" + id.String()); found {
		return v.(*model.Organization)
	}
	org, err := r.orgs.GetActive(ctx, id)
	if err != nil || org == nil {
		return nil
	}
	r.cache.Set("id:"+id.String(), org, cache.DefaultExpiration)
	return org
}
