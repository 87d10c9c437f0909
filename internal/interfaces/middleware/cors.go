package middleware

import (
	"time"

	"github.com/dapursambal/storefront/pkg/constants"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Cors allows the storefront frontend origins to call the API with credentials,
// which the visitor cookie needs
func Cors(allowedOrigins []string) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", constants.HeaderAuthorization, constants.HeaderIfNoneMatch},
		ExposeHeaders:    []string{"ETag", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}
