package user

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medisync/clinic-api/internal/handler"
	"github.com/medisync/clinic-api/internal/middleware"
	"github.com/medisync/clinic-api/internal/model"
	userservice "github.com/medisync/clinic-api/internal/service/user"
	apperrors "github.com/medisync/clinic-api/pkg/errors"
)

type Handler struct {
	svc *userservice.Service
}

func NewHandler(svc *userservice.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the user endpoints. Every route sits behind the
// membership gate and a permission gate, in that order.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, authmw *middleware.AuthMiddleware, tenantmw *middleware.TenantMiddleware) {
	users := r.Group("/users", authmw.Authenticate(), tenantmw.Require())
	{
		users.POST("", authmw.RequirePermission(model.PermUsersManage), h.Create)
		users.GET("", authmw.RequirePermission(model.PermUsersRead), h.List)
		users.GET("/:id", authmw.RequirePermission(model.PermUsersRead), h.Get)
		users.PUT("/:id", authmw.RequirePermission(model.PermUsersManage), h.Update)
	}
}

func (h *Handler) Create(c *gin.Context) {
	var user model.User
	if err := c.ShouldBindJSON(&user); err != nil {
		fail(c, apperrors.NewValidation("invalid request body", nil))
		return
	}

	if err := h.svc.Create(c.Request.Context(), &user, middleware.GetSession(c)); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(user.Summary()))
}

func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		fail(c, apperrors.NewValidation("invalid user id", nil))
		return
	}

	user, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	// Tenant isolation: a user row from another organization does not
	// exist as far as this caller is concerned.
	if org := middleware.GetOrganization(c); org == nil || user.OrganizationID != org.ID {
		fail(c, apperrors.NewNotFound("user", nil))
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(user.Summary()))
}

func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		fail(c, apperrors.NewValidation("invalid user id", nil))
		return
	}

	var req model.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperrors.NewValidation("invalid request body", nil))
		return
	}

	user, err := h.svc.Update(c.Request.Context(), id, &req, middleware.GetSession(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(user.Summary()))
}

func (h *Handler) List(c *gin.Context) {
	var filter model.UserFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		fail(c, apperrors.NewValidation("invalid query parameters", nil))
		return
	}

	org := middleware.GetOrganization(c)
	users, err := h.svc.List(c.Request.Context(), org.ID, &filter)
	if err != nil {
		fail(c, err)
		return
	}

	summaries := make([]model.UserSummary, 0, len(users))
	for _, u := range users {
		summaries = append(summaries, u.Summary())
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(summaries))
}

func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
