package organization

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medisync/clinic-api/internal/handler"
	"github.com/medisync/clinic-api/internal/middleware"
	"github.com/medisync/clinic-api/internal/model"
	orgservice "github.com/medisync/clinic-api/internal/service/organization"
	apperrors "github.com/medisync/clinic-api/pkg/errors"
)

type Handler struct {
	svc *orgservice.Service
}

func NewHandler(svc *orgservice.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts organization endpoints. Create and list operate
// across tenants and deliberately skip the membership gate; they are
// reachable only with the organizations.manage permission, which only
// super roles hold by default.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, authmw *middleware.AuthMiddleware, tenantmw *middleware.TenantMiddleware) {
	orgs := r.Group("/organizations", authmw.Authenticate())
	{
		orgs.POST("", authmw.RequirePermission(model.PermOrganizationsManage), h.Create)
		orgs.GET("", authmw.RequirePermission(model.PermOrganizationsManage), h.List)
		orgs.GET("/:id", tenantmw.Require(), h.Get)
	}
}

func (h *Handler) Create(c *gin.Context) {
	var req model.CreateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperrors.NewValidation("invalid request body", nil))
		return
	}

	org, err := h.svc.Create(c.Request.Context(), &req, middleware.GetSession(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(org))
}

// Get returns the tenant's own record. The membership gate has already
// run; a caller can only ever see the organization it resolved into.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		fail(c, apperrors.NewValidation("invalid organization id", nil))
		return
	}

	org := middleware.GetOrganization(c)
	if org.ID != id {
		fail(c, apperrors.NewForbidden("not a member of this organization", nil, nil))
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(org))
}

func (h *Handler) List(c *gin.Context) {
	orgs, err := h.svc.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(orgs))
}

func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
