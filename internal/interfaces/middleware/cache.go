package middleware

import (
	"bytes"
	"fmt"
	"hash/fnv"
	"net/http"
	"regexp"
	"strings"

	"github.com/dapursambal/storefront/pkg/constants"
	"github.com/gin-gonic/gin"
)

// CacheClass is the caching strategy a path gets, mirrored by the service worker
type CacheClass int

const (
	// CacheNone leaves Cache-Control to the handler
	CacheNone CacheClass = iota
	// CacheImmutable is for versioned static assets (cache-first)
	CacheImmutable
	// CacheRevalidate is for catalog and blog reads (stale-while-revalidate)
	CacheRevalidate
	// CacheNoStore is for forms, admin and anything that writes (network-only)
	CacheNoStore
)

const (
	cacheControlImmutable  = "public, max-age=31536000, immutable"
	cacheControlRevalidate = "public, max-age=60, stale-while-revalidate=300"
	cacheControlNoStore    = "no-store"
)

var hashedAsset = regexp.MustCompile(`\.[0-9a-f]{8,}\.[a-z0-9]+$`)

// ClassifyRequest decides the cache class for a method and path
func ClassifyRequest(method, path string) CacheClass {
	read := method == http.MethodGet || method == http.MethodHead
	switch {
	case !read:
		return CacheNoStore
	case strings.HasPrefix(path, "/api/admin"):
		return CacheNoStore
	case strings.HasPrefix(path, "/static/") || hashedAsset.MatchString(path):
		return CacheImmutable
	case strings.HasPrefix(path, "/api/products") || strings.HasPrefix(path, "/api/posts"):
		return CacheRevalidate
	case strings.HasPrefix(path, "/api/"):
		return CacheNoStore
	}
	return CacheNone
}

// CachePolicy sets Cache-Control per path class and answers conditional GETs on
// revalidated reads with a weak ETag
func CachePolicy() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch ClassifyRequest(c.Request.Method, c.Request.URL.Path) {
		case CacheImmutable:
			c.Header("Cache-Control", cacheControlImmutable)
			c.Next()
		case CacheNoStore:
			c.Header("Cache-Control", cacheControlNoStore)
			c.Next()
		case CacheRevalidate:
			revalidate(c)
		default:
			c.Next()
		}
	}
}

type bufferedWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *bufferedWriter) Write(b []byte) (int, error) {
	return w.body.Write(b)
}

func (w *bufferedWriter) WriteString(s string) (int, error) {
	return w.body.WriteString(s)
}

func revalidate(c *gin.Context) {
	orig := c.Writer
	buf := &bufferedWriter{ResponseWriter: orig}
	c.Writer = buf
	c.Next()
	c.Writer = orig

	if buf.Status() != http.StatusOK {
		orig.Header().Set("Cache-Control", cacheControlNoStore)
		_, _ = orig.Write(buf.body.Bytes())
		return
	}

	etag := WeakETag(buf.body.Bytes())
	orig.Header().Set("Cache-Control", cacheControlRevalidate)
	orig.Header().Set("ETag", etag)
	if etagMatches(c.GetHeader(constants.HeaderIfNoneMatch), etag) {
		orig.Header().Del("Content-Type")
		orig.WriteHeader(http.StatusNotModified)
		orig.WriteHeaderNow()
		return
	}
	_, _ = orig.Write(buf.body.Bytes())
}

// WeakETag hashes a response body into a weak validator
func WeakETag(body []byte) string {
	h := fnv.New64a()
	_, _ = h.Write(body)
	return fmt.Sprintf(`W/"%x"`, h.Sum64())
}

func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	if strings.TrimSpace(header) == "*" {
		return true
	}
	want := strings.TrimPrefix(etag, "W/")
	for _, candidate := range strings.Split(header, ",") {
		if strings.TrimPrefix(strings.TrimSpace(candidate), "W/") == want {
			return true
		}
	}
	return false
}
