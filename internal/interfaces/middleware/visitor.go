package middleware

import (
	"net/http"

	"github.com/dapursambal/storefront/pkg/constants"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const visitorCookieMaxAge = 365 * 24 * 60 * 60

// Visitor makes sure every request carries a stable anonymous visitor id.
// The id comes from the ds_vid cookie; a missing or malformed cookie gets a
// fresh uuid.
func Visitor(secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(constants.VisitorCookie)
		if _, perr := uuid.Parse(id); err != nil || perr != nil {
			id = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(constants.VisitorCookie, id, visitorCookieMaxAge, "/", "", secure, true)
		}
		c.Set(constants.ContextKeyVisitorID, id)
		c.Next()
	}
}

// VisitorID returns the id set by Visitor
func VisitorID(c *gin.Context) string {
	return c.GetString(constants.ContextKeyVisitorID)
}
