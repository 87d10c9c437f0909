package rest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dapursambal/storefront/internal/application/services"
	"github.com/dapursambal/storefront/internal/config"
	"github.com/dapursambal/storefront/internal/interfaces/middleware"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floodEngine(t *testing.T, proxies []string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r, err := newEngine(config.HTTPSettings{Port: "3001", AllowedOrigins: []string{"http://localhost:3000"}, TrustedProxies: proxies})
	require.NoError(t, err)
	r.POST("/api/contact", middleware.FormFlood(services.NewFloodGuard(5, time.Minute)), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})
	return r
}

func postFrom(r *gin.Engine, remote, forwarded string) int {
	req := httptest.NewRequest(http.MethodPost, "/api/contact", nil)
	req.RemoteAddr = remote
	req.Header.Set("X-Forwarded-For", forwarded)
	req.Header.Set("X-Real-IP", forwarded)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestNewEngine_IgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	r := floodEngine(t, nil)

	accepted := 0
	for i := 0; i < 50; i++ {
		if postFrom(r, "203.0.113.9:40000", fmt.Sprintf("10.0.0.%d", i)) == http.StatusCreated {
			accepted++
		}
	}
	assert.Equal(t, 5, accepted)
}

func TestNewEngine_HonoursForwardedForFromTrustedProxy(t *testing.T) {
	r := floodEngine(t, []string{"10.1.0.0/16"})

	for i := 0; i < 10; i++ {
		assert.Equal(t, http.StatusCreated, postFrom(r, "10.1.2.3:5000", fmt.Sprintf("198.51.100.%d", i)))
	}
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusCreated, postFrom(r, "10.1.2.3:5000", "198.51.100.200"))
	}
	assert.Equal(t, http.StatusTooManyRequests, postFrom(r, "10.1.2.3:5000", "198.51.100.200"))
}

func TestNewEngine_RejectsBadProxy(t *testing.T) {
	_, err := newEngine(config.HTTPSettings{TrustedProxies: []string{"not-an-ip"}})
	assert.Error(t, err)
}
