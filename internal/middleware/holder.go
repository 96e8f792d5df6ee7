package middleware

import (
  "fmt"
  "strings"
  "github.com/gin-gonic/gin"
  "github.com/golang-jwt/jwt/v5"
  "github.com/avelir/psalter-backend/internal/logger"
)

const (
  ctxHolderID      = "holder_id"
  ctxHolderIsAcct  = "holder_is_account"
  ctxDeviceID      = "device_id"
)

// HolderMiddleware resolves who a request acts as. An authenticated
// account (bearer token subject, verified against the external auth
// provider's shared secret) supersedes the anonymous device identifier
// from X-Device-ID. Requests may carry both during the linking flow.
type HolderMiddleware struct {
  log       *logger.Logger
  jwtSecret []byte
}

func NewHolderMiddleware(log *logger.Logger, jwtSecret string) *HolderMiddleware {
  return &HolderMiddleware{
    log:       log.With("Middleware", "HolderMiddleware"),
    jwtSecret: []byte(jwtSecret),
  }
}

func (m *HolderMiddleware) Resolve() gin.HandlerFunc {
  return func(c *gin.Context) {
    device := strings.TrimSpace(c.GetHeader("X-Device-ID"))
    if device == "" {
      device = strings.TrimSpace(c.Query("holder"))
    }
    if device != "" {
      c.Set(ctxDeviceID, device)
    }

    if sub, ok := m.subjectFromToken(c); ok {
      c.Set(ctxHolderID, sub)
      c.Set(ctxHolderIsAcct, true)
      c.Next()
      return
    }
    if device != "" {
      c.Set(ctxHolderID, device)
      c.Set(ctxHolderIsAcct, false)
    }
    c.Next()
  }
}

func (m *HolderMiddleware) subjectFromToken(c *gin.Context) (string, bool) {
  authHeader := c.GetHeader("Authorization")
  if len(authHeader) <= 7 || !strings.EqualFold(authHeader[:7], "Bearer ") {
    return "", false
  }
  tokenString := authHeader[7:]
  token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
    if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
      return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
    }
    return m.jwtSecret, nil
  })
  if err != nil || !token.Valid {
    m.log.Debug("Rejected bearer token", "error", err)
    return "", false
  }
  sub, err := token.Claims.GetSubject()
  if err != nil || sub == "" {
    return "", false
  }
  return sub, true
}

// HolderID returns the resolved holder for the request, empty when the
// caller sent neither a token nor a device id.
func HolderID(c *gin.Context) string {
  return c.GetString(ctxHolderID)
}

// DeviceID returns the raw device identifier, if any was sent.
func DeviceID(c *gin.Context) string {
  return c.GetString(ctxDeviceID)
}

// IsAccount reports whether the holder came from a verified token.
func IsAccount(c *gin.Context) bool {
  return c.GetBool(ctxHolderIsAcct)
}
