package audit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medisync/clinic-api/internal/handler"
	"github.com/medisync/clinic-api/internal/middleware"
	"github.com/medisync/clinic-api/internal/model"
	auditservice "github.com/medisync/clinic-api/internal/service/audit"
	apperrors "github.com/medisync/clinic-api/pkg/errors"
)

type Handler struct {
	svc *auditservice.Recorder
}

func NewHandler(svc *auditservice.Recorder) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the audit log listing, tenant-scoped and gated
// on the audit.read permission.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, authmw *middleware.AuthMiddleware, tenantmw *middleware.TenantMiddleware) {
	audit := r.Group("/audit", authmw.Authenticate(), tenantmw.Require())
	{
		audit.GET("/logs", authmw.RequirePermission(model.PermAuditRead), h.ListLogs)
	}
}

// ListLogs returns the tenant's audit trail, newest first. The
// organization filter is forced to the resolved tenant; callers cannot
// page through another organization's history.
func (h *Handler) ListLogs(c *gin.Context) {
	org := middleware.GetOrganization(c)

	filters := map[string]interface{}{
		"organization_id": org.ID,
	}
	if v := c.Query("user_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			fail(c, apperrors.NewValidation("invalid user_id filter", nil))
			return
		}
		filters["user_id"] = id
	}
	if v := c.Query("action"); v != "" {
		filters["action"] = v
	}
	if v := c.Query("start_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			fail(c, apperrors.NewValidation("invalid start_date filter", nil))
			return
		}
		filters["start_date"] = t
	}
	if v := c.Query("end_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			fail(c, apperrors.NewValidation("invalid end_date filter", nil))
			return
		}
		filters["end_date"] = t
	}
	if v := c.Query("limit"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil {
			filters["limit"] = limit
		}
	}
	if v := c.Query("offset"); v != "" {
		if offset, err := strconv.Atoi(v); err == nil {
			filters["offset"] = offset
		}
	}

	logs, total, err := h.svc.List(c.Request.Context(), filters)
	if err != nil {
		fail(c, apperrors.NewInternal(err))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"logs":  logs,
		"total": total,
	}))
}

func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
