package middleware

import (
  "crypto/subtle"
  "net/http"
  "github.com/gin-gonic/gin"
  "github.com/avelir/psalter-backend/internal/logger"
)

// AdminMiddleware guards the content-management endpoints with a shared
// token. Full admin identity lives in the external CMS; this is only the
// service-to-service check.
type AdminMiddleware struct {
  log   *logger.Logger
  token string
}

func NewAdminMiddleware(log *logger.Logger, token string) *AdminMiddleware {
  return &AdminMiddleware{
    log:   log.With("Middleware", "AdminMiddleware"),
    token: token,
  }
}

func (m *AdminMiddleware) RequireAdmin() gin.HandlerFunc {
  return func(c *gin.Context) {
    got := c.GetHeader("X-Admin-Token")
    if m.token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(m.token)) != 1 {
      c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid admin token"})
      return
    }
    c.Next()
  }
}
