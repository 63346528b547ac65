package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medisync/clinic-api/internal/handler"
	"github.com/medisync/clinic-api/internal/middleware"
	"github.com/medisync/clinic-api/internal/model"
	authservice "github.com/medisync/clinic-api/internal/service/auth"
	apperrors "github.com/medisync/clinic-api/pkg/errors"
)

type Handler struct {
	svc        *authservice.Service
	cookieName string
}

func NewHandler(svc *authservice.Service, cookieName string) *Handler {
	return &Handler{svc: svc, cookieName: cookieName}
}

// RegisterRoutes mounts the auth endpoints. Login, forgot and reset are
// anonymous; the rest require a live session.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, authmw *middleware.AuthMiddleware) {
	auth := r.Group("/auth")
	{
		auth.POST("/login", h.Login)
		auth.POST("/forgot-password", h.ForgotPassword)
		auth.POST("/reset-password", h.ResetPassword)

		authed := auth.Group("", authmw.Authenticate())
		{
			authed.POST("/logout", h.Logout)
			authed.POST("/change-password", h.ChangePassword)
			authed.GET("/session", h.SessionStatus)
			authed.POST("/select-organization", h.SelectOrganization)
		}
	}
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperrors.NewValidation("invalid request body", nil))
		return
	}

	resp, sess, err := h.svc.Login(c.Request.Context(), &req, meta(c))
	if err != nil {
		h.fail(c, err)
		return
	}

	h.setSessionCookie(c, sess.Token)
	c.JSON(http.StatusOK, handler.NewSuccessResponse(resp))
}

func (h *Handler) Logout(c *gin.Context) {
	sess := middleware.GetSession(c)
	h.svc.Logout(c.Request.Context(), sess, meta(c))
	h.clearSessionCookie(c)
	c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
}

func (h *Handler) ChangePassword(c *gin.Context) {
	var req model.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperrors.NewValidation("invalid request body", nil))
		return
	}

	sess := middleware.GetSession(c)
	if err := h.svc.ChangePassword(c.Request.Context(), sess, &req, meta(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
}

// ForgotPassword always answers 200 with the same body; the response
// never reveals whether the address is registered.
func (h *Handler) ForgotPassword(c *gin.Context) {
	var req model.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperrors.NewValidation("invalid request body", nil))
		return
	}

	if err := h.svc.ForgotPassword(c.Request.Context(), req.Email, meta(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"message": "if the address is registered, a reset email has been sent",
	}))
}

func (h *Handler) ResetPassword(c *gin.Context) {
	var req model.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperrors.NewValidation("invalid request body", nil))
		return
	}

	if err := h.svc.ResetPassword(c.Request.Context(), &req, meta(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
}

func (h *Handler) SessionStatus(c *gin.Context) {
	sess := middleware.GetSession(c)
	status, err := h.svc.SessionStatus(sess)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(status))
}

func (h *Handler) SelectOrganization(c *gin.Context) {
	var req model.SelectOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperrors.NewValidation("invalid request body", nil))
		return
	}

	sess := middleware.GetSession(c)
	if err := h.svc.SelectOrganization(c.Request.Context(), sess, req.OrganizationID, meta(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
}

func (h *Handler) setSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookieName, token, 0, "/", "", true, true)
}

func (h *Handler) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookieName, "", -1, "/", "", true, true)
}

func (h *Handler) fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

func meta(c *gin.Context) authservice.RequestMeta {
	return authservice.RequestMeta{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}
