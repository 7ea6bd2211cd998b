package ginserver

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"
)

const swaggerSpecPath = "/swagger/doc.json"

//go:embed swagger/openapi.json
var swaggerSpec []byte

//go:embed swagger/index.html
var swaggerHTML string

// registerSwaggerRoutes serves the embedded OpenAPI document and the UI
// page. Both are immutable per build so they carry a content ETag.
func registerSwaggerRoutes(router gin.IRoutes) {
	page := []byte(strings.ReplaceAll(swaggerHTML, "{{SPEC_URL}}", swaggerSpecPath))
	router.GET(swaggerSpecPath, staticAsset("application/json", swaggerSpec))
	router.GET("/swagger", staticAsset("text/html; charset=utf-8", page))
}

func staticAsset(contentType string, body []byte) gin.HandlerFunc {
	sum := sha256.Sum256(body)
	etag := `"` + hex.EncodeToString(sum[:8]) + `"`
	return func(c *gin.Context) {
		c.Header("ETag", etag)
		c.Header("Cache-Control", "public, max-age=300")
		if c.GetHeader("If-None-Match") == etag {
			c.Status(http.StatusNotModified)
			return
		}
		c.Data(http.StatusOK, contentType, body)
	}
}
