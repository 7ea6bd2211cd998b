package ginserver

import (
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"innkeep/internal/infra/security"
)

const adminSubject = "admin-token"

// AdminAuth guards the /admin group with a static bearer token.
type AdminAuth struct {
	Tokens security.AdminTokens
	Logger *slog.Logger
}

func (m AdminAuth) Handle(c *gin.Context) {
	token := extractBearerToken(c.GetHeader("Authorization"))
	if err := m.Tokens.Verify(token); err != nil {
		if m.Logger != nil && token != "" {
			m.Logger.Debug("admin token rejected", "path", c.FullPath())
		}
		respondWithError(c, http.StatusUnauthorized, err)
		return
	}
	ctx := security.WithAdmin(c.Request.Context(), adminSubject)
	c.Request = c.Request.WithContext(ctx)
	c.Next()
}

func extractBearerToken(header string) string {
	if header == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
