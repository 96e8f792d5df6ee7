package handlers

import (
  "errors"
  "net/http"
  "github.com/gin-gonic/gin"
  "github.com/avelir/psalter-backend/internal/logger"
  "github.com/avelir/psalter-backend/internal/middleware"
  "github.com/avelir/psalter-backend/internal/sse"
)

type SSEHandler struct {
  log *logger.Logger
  hub *sse.SSEHub
}

func NewSSEHandler(log *logger.Logger, hub *sse.SSEHub) *SSEHandler {
  return &SSEHandler{
    log: log.With("handler", "SSEHandler"),
    hub: hub,
  }
}

// GET /api/sse/stream?chain=<slug> — live stats for one chain.
func (h *SSEHandler) Stream(c *gin.Context) {
  slug := c.Query("chain")
  if slug == "" {
    RespondError(c, http.StatusBadRequest, "invalid_argument", errors.New("chain query parameter required"))
    return
  }
  client := h.hub.NewSSEClient(middleware.HolderID(c))
  h.hub.AddChannel(client, sse.ChainChannel(slug))
  defer h.hub.CloseClient(client)

  h.hub.ServeHTTP(c.Writer, c.Request, client)
}
