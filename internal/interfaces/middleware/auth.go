package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/dapursambal/storefront/pkg/auth"
	"github.com/dapursambal/storefront/pkg/constants"
	"github.com/gin-gonic/gin"
)

// SessionValidator checks an admin bearer token against the signing key and
// the session table
type SessionValidator interface {
	ValidateSession(ctx context.Context, tokenString string) (*auth.Claims, error)
	TouchSession(sessionID string)
}

// RequireAuth is a middleware that validates admin JWT tokens
func RequireAuth(authSvc SessionValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader(constants.HeaderAuthorization)
		if authHeader == "" {
			abortJSON(c, http.StatusUnauthorized, "Unauthorized", "No authorization token provided", "UNAUTHORIZED")
			return
		}

		// Format: "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			abortJSON(c, http.StatusUnauthorized, "Unauthorized", "Invalid authorization header format", "UNAUTHORIZED")
			return
		}
		tokenString := parts[1]

		claims, err := authSvc.ValidateSession(c.Request.Context(), tokenString)
		if err != nil {
			abortJSON(c, http.StatusUnauthorized, "Unauthorized", err.Error(), "UNAUTHORIZED")
			return
		}

		// Fire and forget
		authSvc.TouchSession(claims.ID)

		c.Set(constants.ContextKeyAdmin, claims.Admin)
		c.Set(constants.ContextKeyToken, tokenString)

		c.Next()
	}
}

func abortJSON(c *gin.Context, status int, errText, message, code string) {
	c.AbortWithStatusJSON(status, gin.H{
		constants.ResponseError: errText,
		constants.FieldMessage:  message,
		"code":                  code,
		"data":                  nil,
	})
}
