package handlers

import (
  "errors"
  "net/http"
  "time"
  "github.com/gin-gonic/gin"
  "github.com/avelir/psalter-backend/internal/logger"
  "github.com/avelir/psalter-backend/internal/middleware"
  "github.com/avelir/psalter-backend/internal/services"
)

type ProgressHandler struct {
  log      *logger.Logger
  progress services.ProgressService
}

func NewProgressHandler(log *logger.Logger, progress services.ProgressService) *ProgressHandler {
  return &ProgressHandler{
    log:      log.With("handler", "ProgressHandler"),
    progress: progress,
  }
}

// GET /api/participant/progress?day=YYYY-MM-DD
func (h *ProgressHandler) Get(c *gin.Context) {
  holder := middleware.HolderID(c)
  if holder == "" {
    RespondError(c, http.StatusBadRequest, "invalid_argument", errors.New("holder identity required"))
    return
  }
  day := c.Query("day")
  if day == "" {
    day = time.Now().UTC().Format("2006-01-02")
  }
  state, err := h.progress.Get(c.Request.Context(), holder, day)
  if err != nil {
    RespondDomainError(c, err)
    return
  }
  RespondOK(c, state)
}

// PUT /api/participant/progress
func (h *ProgressHandler) Put(c *gin.Context) {
  holder := middleware.HolderID(c)
  if holder == "" {
    RespondError(c, http.StatusBadRequest, "invalid_argument", errors.New("holder identity required"))
    return
  }
  var req services.DayState
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_argument", err)
    return
  }
  merged, err := h.progress.Put(c.Request.Context(), holder, req)
  if err != nil {
    RespondDomainError(c, err)
    return
  }
  RespondOK(c, merged)
}

// POST /api/participant/link — requires an authenticated holder plus the
// device id whose history should fold into the account.
func (h *ProgressHandler) Link(c *gin.Context) {
  if !middleware.IsAccount(c) {
    RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("account token required"))
    return
  }
  account := middleware.HolderID(c)
  var req struct {
    DeviceID string `json:"deviceId"`
  }
  _ = c.ShouldBindJSON(&req)
  device := req.DeviceID
  if device == "" {
    device = middleware.DeviceID(c)
  }
  if device == "" {
    RespondError(c, http.StatusBadRequest, "invalid_argument", errors.New("device id required"))
    return
  }
  if err := h.progress.LinkDevice(c.Request.Context(), device, account); err != nil {
    RespondDomainError(c, err)
    return
  }
  c.Status(http.StatusNoContent)
}
