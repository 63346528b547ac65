package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/medisync/clinic-api/internal/model"
	"github.com/medisync/clinic-api/internal/service/audit"
	"github.com/medisync/clinic-api/internal/tenant"
	apperrors "github.com/medisync/clinic-api/pkg/errors"
	"github.com/medisync/clinic-api/pkg/metrics"
)

const organizationKey = "organization"

// TenantMiddleware resolves the active organization for each request
// and enforces membership on tenant-scoped routes.
type TenantMiddleware struct {
	resolver *tenant.Resolver
	recorder *audit.Recorder
	metrics  *metrics.Metrics
}

func NewTenantMiddleware(resolver *tenant.Resolver, recorder *audit.Recorder, m *metrics.Metrics) *TenantMiddleware {
	return &TenantMiddleware{resolver: resolver, recorder: recorder, metrics: m}
}

// Resolve determines the tenant from the request origin (subdomain or
// explicit header) and stores it on the context. It runs before
// authentication, so principal-based resolution happens in Require
// instead. Resolution failure for an explicit header is fatal; an
// absent tenant is left for Require to judge.
func (t *TenantMiddleware) Resolve() gin.HandlerFunc {
	return func(c *gin.Context) {
		org, source, err := t.resolver.Resolve(c.Request.Context(), tenant.Request{
			Host:     c.Request.Host,
			TenantID: c.GetHeader(tenant.HeaderTenantID),
			Session:  GetSession(c),
		})
		if err != nil {
			t.metrics.TenantResolutions.WithLabelValues(string(source), "error").Inc()
			abort(c, toAppError(err))
			return
		}

		if org != nil {
			t.metrics.TenantResolutions.WithLabelValues(string(source), "ok").Inc()
			c.Set(organizationKey, org)
		} else {
			t.metrics.TenantResolutions.WithLabelValues(string(source), "none").Inc()
		}
		c.Next()
	}
}

// Require enforces the membership gate. Runs after Authenticate and
// Resolve; the error order is fixed so a missing session always wins
// over a missing tenant.
func (t *TenantMiddleware) Require() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := GetSession(c)
		org := GetOrganization(c)

		// Resolve ran before authentication, when the principal was
		// still unknown. With the session in hand, the last resolution
		// mechanism gets its turn: the principal's own organization.
		if org == nil && sess != nil {
			if fallback, source, err := t.resolver.Resolve(c.Request.Context(), tenant.Request{Session: sess}); err == nil && fallback != nil {
				t.metrics.TenantResolutions.WithLabelValues(string(source), "ok").Inc()
				c.Set(organizationKey, fallback)
				org = fallback
			}
		}

		if err := tenant.ValidateMembership(sess, org); err != nil {
			if sess != nil && org != nil {
				t.recorder.Record(audit.Entry{
					UserID:         sess.UserID,
					OrganizationID: org.ID,
					Action:         model.AuditActionTenantDenied,
					EntityType:     model.AuditEntityOrganization,
					EntityID:       org.ID,
					IPAddress:      c.ClientIP(),
					UserAgent:      c.Request.UserAgent(),
				})
			}
			abort(c, toAppError(err))
			return
		}
		c.Next()
	}
}

// GetOrganization returns the resolved tenant, or nil when no mechanism
// applied.
func GetOrganization(c *gin.Context) *model.Organization {
	v, ok := c.Get(organizationKey)
	if !ok {
		return nil
	}
	org, _ := v.(*model.Organization)
	return org
}

func toAppError(err error) *apperrors.AppError {
	if appErr, ok := err.(*apperrors.AppError); ok {
		return appErr
	}
	return apperrors.NewInternal(err)
}
