package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/dapursambal/storefront/internal/application/services"
	"github.com/dapursambal/storefront/internal/domain/models"
	"github.com/dapursambal/storefront/pkg/auth"
	"github.com/dapursambal/storefront/pkg/constants"
	"github.com/dapursambal/storefront/pkg/errors"
	"github.com/dapursambal/storefront/pkg/forms"
	"github.com/gin-gonic/gin"
)

// AuthService signs admins in and out
type AuthService interface {
	Login(ctx context.Context, email, password, ip, userAgent string) (*services.LoginResult, error)
	Logout(ctx context.Context, tokenString string) error
	ChangePassword(ctx context.Context, userID, sessionID, currentPassword, newPassword string) error
	GetAdmin(ctx context.Context, userID string) (*models.AdminUser, error)
}

type AuthHandler struct {
	svc AuthService
}

func NewAuthHandler(svc AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// LoginRequest represents login request body
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents login response
type LoginResponse struct {
	Success   bool        `json:"success"`
	Token     string      `json:"token"`
	User      interface{} `json:"user"`
	ExpiresAt string      `json:"expires_at"`
}

// Login handles POST /api/admin/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !BindJSON(c, &req) {
		return
	}
	if !forms.IsValidEmail(forms.NormalizeEmail(req.Email)) {
		RespondAppError(c, errors.NewValidationError("email", "Invalid email format"))
		return
	}

	result, err := h.svc.Login(c.Request.Context(), req.Email, req.Password, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Success:   true,
		Token:     result.Token,
		User:      result.User,
		ExpiresAt: result.ExpiresAt.Format(time.RFC3339),
	})
}

// Logout handles POST /api/admin/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	tokenString := c.GetString(constants.ContextKeyToken)
	if tokenString == "" {
		RespondAppError(c, errors.NewUnauthorizedError("no token provided"))
		return
	}

	HandleDeleteEnvelope(c, "Logged out successfully", func() error {
		return h.svc.Logout(c.Request.Context(), tokenString)
	})
}

// GetMe handles GET /api/admin/auth/me
func (h *AuthHandler) GetMe(c *gin.Context) {
	admin := GetAdminFromContext(c)
	if admin == nil {
		RespondAppError(c, errors.NewUnauthorizedError("admin not found"))
		return
	}
	HandleGetEnvelope(c, "user", func() (interface{}, error) {
		return h.svc.GetAdmin(c.Request.Context(), admin.ID)
	})
}

// ChangePasswordRequest represents change password request
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// ChangePassword handles POST /api/admin/auth/change-password. Other sessions
// of the same admin are revoked.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if !BindJSON(c, &req) {
		return
	}
	admin := GetAdminFromContext(c)
	if admin == nil {
		RespondAppError(c, errors.NewUnauthorizedError("admin not found"))
		return
	}
	// The token was verified by RequireAuth; its jti is the session id
	claims, err := auth.DecodeToken(c.GetString(constants.ContextKeyToken))
	if err != nil {
		RespondAppError(c, errors.NewUnauthorizedError("invalid token"))
		return
	}

	if err := h.svc.ChangePassword(c.Request.Context(), admin.ID, claims.ID, req.CurrentPassword, req.NewPassword); err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{constants.FieldMessage: "Password changed successfully"})
}
