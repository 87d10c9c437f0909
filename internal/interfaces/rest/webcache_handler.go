package rest

import (
	"bytes"
	"embed"
	"log"
	"net/http"
	"text/template"

	"github.com/gin-gonic/gin"
)

//go:embed assets/sw.js.tmpl assets/offline.html
var webAssets embed.FS

var serviceWorkerTemplate = template.Must(template.ParseFS(webAssets, "assets/sw.js.tmpl"))

// DefaultPrecache is the app shell the service worker installs with
var DefaultPrecache = []string{"/", "/offline", "/produk", "/blog", "/manifest.webmanifest"}

// WebCacheHandler serves the service worker script and the offline fallback page
type WebCacheHandler struct {
	script  []byte
	offline []byte
}

// NewWebCacheHandler renders the service worker once for the given asset
// version. Bumping the version makes browsers drop their old caches.
func NewWebCacheHandler(version string, precache []string) (*WebCacheHandler, error) {
	var buf bytes.Buffer
	data := struct {
		Version  string
		Precache []string
	}{Version: version, Precache: precache}
	if err := serviceWorkerTemplate.Execute(&buf, data); err != nil {
		return nil, err
	}
	offline, err := webAssets.ReadFile("assets/offline.html")
	if err != nil {
		return nil, err
	}
	log.Printf("🗂️ Service worker rendered (version %s, %d precached URLs)", version, len(precache))
	return &WebCacheHandler{script: buf.Bytes(), offline: offline}, nil
}

// ServiceWorker handles GET /sw.js
func (h *WebCacheHandler) ServiceWorker(c *gin.Context) {
	c.Header("Cache-Control", "no-cache")
	c.Header("Service-Worker-Allowed", "/")
	c.Data(http.StatusOK, "application/javascript; charset=utf-8", h.script)
}

// Offline handles GET /offline
func (h *WebCacheHandler) Offline(c *gin.Context) {
	c.Header("Cache-Control", "no-cache")
	c.Data(http.StatusOK, "text/html; charset=utf-8", h.offline)
}
