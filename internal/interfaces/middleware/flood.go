package middleware

import (
	stderrors "errors"
	"math"
	"net/http"
	"strconv"

	"github.com/dapursambal/storefront/pkg/errors"
	"github.com/gin-gonic/gin"
)

// FloodChecker records a form post for a key and rejects it when the key is over its limit
type FloodChecker interface {
	Check(key string) error
}

// FormFlood limits public form posts per client IP
func FormFlood(guard FloodChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := guard.Check(c.ClientIP())
		if err == nil {
			c.Next()
			return
		}

		var limited *errors.RateLimitedError
		if stderrors.As(err, &limited) {
			secs := int(math.Ceil(limited.RetryAfter.Seconds()))
			if secs < 1 {
				secs = 1
			}
			c.Header("Retry-After", strconv.Itoa(secs))
			abortJSON(c, http.StatusTooManyRequests, "Too Many Requests", err.Error(), limited.Code())
			return
		}
		abortJSON(c, http.StatusInternalServerError, "Internal Server Error", err.Error(), "INTERNAL_ERROR")
	}
}
