package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sabanago/ride-sharing/pkg/common"
	"github.com/sabanago/ride-sharing/pkg/middleware"
	"github.com/sabanago/ride-sharing/pkg/models"
)

// Handler handles HTTP requests for identity flows.
type Handler struct {
	service *Service
}

// NewHandler creates a new auth handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterPublicRoutes wires the endpoints reachable without a token.
func (h *Handler) RegisterPublicRoutes(auth *gin.RouterGroup) {
	auth.POST("/register", h.Register)
	auth.POST("/login", h.Login)
	auth.POST("/forgot-password", h.ForgotPassword)
	auth.POST("/reset-password", h.ResetPassword)
}

// RegisterProtectedRoutes wires the endpoints behind the auth middleware.
func (h *Handler) RegisterProtectedRoutes(auth *gin.RouterGroup) {
	auth.GET("/me", h.Me)
	auth.PUT("/me", h.UpdateMe)
	auth.POST("/logout", h.Logout)
	auth.PUT("/role", h.SwitchRole)
}

// Register creates an account. Drivers register their first vehicle in the
// same request.
func (h *Handler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if !common.BindJSON(c, &req) {
		return
	}

	resp, err := h.service.Register(c.Request.Context(), &req)
	if common.HandleServiceError(c, err, "registration failed") {
		return
	}

	common.CreatedResponse(c, resp)
}

// Login exchanges credentials for an access token.
func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if !common.BindJSON(c, &req) {
		return
	}

	resp, err := h.service.Login(c.Request.Context(), &req)
	if common.HandleServiceError(c, err, "login failed") {
		return
	}

	common.SuccessResponse(c, resp)
}

// Logout revokes the presented token for the rest of its lifetime.
func (h *Handler) Logout(c *gin.Context) {
	token, expiresAt, err := middleware.GetAccessToken(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.service.Logout(c.Request.Context(), token, expiresAt); common.HandleServiceError(c, err, "logout failed") {
		return
	}

	common.SuccessResponse(c, gin.H{"message": "logged out"})
}

// Me returns the caller's profile.
func (h *Handler) Me(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	user, err := h.service.GetProfile(c.Request.Context(), userID)
	if common.HandleServiceError(c, err, "failed to load profile") {
		return
	}

	common.SuccessResponse(c, user)
}

// UpdateMe mutates the editable profile fields.
func (h *Handler) UpdateMe(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	var req models.UpdateProfileRequest
	if !common.BindJSON(c, &req) {
		return
	}

	user, err := h.service.UpdateProfile(c.Request.Context(), userID, &req)
	if common.HandleServiceError(c, err, "failed to update profile") {
		return
	}

	common.SuccessResponse(c, user)
}

// SwitchRole changes the caller's active role.
func (h *Handler) SwitchRole(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	var req models.SwitchRoleRequest
	if !common.BindJSON(c, &req) {
		return
	}

	user, err := h.service.SwitchRole(c.Request.Context(), userID, req.Role)
	if common.HandleServiceError(c, err, "failed to switch role") {
		return
	}

	common.SuccessResponse(c, user)
}

// ForgotPassword starts the recovery flow. The response never says whether
// the account exists.
func (h *Handler) ForgotPassword(c *gin.Context) {
	var req models.ForgotPasswordRequest
	if !common.BindJSON(c, &req) {
		return
	}

	if err := h.service.ForgotPassword(c.Request.Context(), req.Email); common.HandleServiceError(c, err, "failed to process request") {
		return
	}

	common.SuccessResponse(c, gin.H{"message": "if the account exists, a reset email is on its way"})
}

// ResetPassword redeems a recovery token for a new password.
func (h *Handler) ResetPassword(c *gin.Context) {
	var req models.ResetPasswordRequest
	if !common.BindJSON(c, &req) {
		return
	}

	if err := h.service.ResetPassword(c.Request.Context(), req.Token, req.NewPassword); common.HandleServiceError(c, err, "failed to reset password") {
		return
	}

	common.SuccessResponse(c, gin.H{"message": "password updated"})
}
