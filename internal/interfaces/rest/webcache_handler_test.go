package rest_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dapursambal/storefront/internal/interfaces/rest"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebCacheHandler_ServiceWorker(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, err := rest.NewWebCacheHandler("2026.10.1", []string{"/", "/offline", `/a"b`})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/sw.js", nil)

	handler.ServiceWorker(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))
	assert.Equal(t, "/", w.Header().Get("Service-Worker-Allowed"))
	assert.Contains(t, w.Header().Get("Content-Type"), "application/javascript")

	script := w.Body.String()
	assert.Contains(t, script, `const VERSION = "2026.10.1";`)
	assert.Contains(t, script, `const PRECACHE = ["/", "/offline", "/a\"b"];`)
	assert.Contains(t, script, "staleWhileRevalidate")
}

func TestWebCacheHandler_Offline(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, err := rest.NewWebCacheHandler("v1", rest.DefaultPrecache)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/offline", nil)

	handler.Offline(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Sedang offline")
}
