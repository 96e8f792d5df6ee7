package handlers

import (
  "errors"
  "net/http"
  "github.com/gin-gonic/gin"
  "github.com/avelir/psalter-backend/internal/logger"
  apperrors "github.com/avelir/psalter-backend/internal/pkg/errors"
  "github.com/avelir/psalter-backend/internal/middleware"
  "github.com/avelir/psalter-backend/internal/services"
)

type ChainHandler struct {
  log         *logger.Logger
  chains      services.ChainService
  assignments services.AssignmentService
  completions services.CompletionService
  stats       services.StatsService
  notifier    services.StatsNotifier
}

func NewChainHandler(log *logger.Logger, chains services.ChainService, assignments services.AssignmentService, completions services.CompletionService, stats services.StatsService, notifier services.StatsNotifier) *ChainHandler {
  return &ChainHandler{
    log:         log.With("handler", "ChainHandler"),
    chains:      chains,
    assignments: assignments,
    completions: completions,
    stats:       stats,
    notifier:    notifier,
  }
}

// GET /api/chains
func (h *ChainHandler) List(c *gin.Context) {
  chains, err := h.chains.ListActive(c.Request.Context())
  if err != nil {
    RespondDomainError(c, err)
    return
  }
  RespondOK(c, gin.H{"chains": chains})
}

// POST /api/admin/chains
func (h *ChainHandler) Create(c *gin.Context) {
  var req struct {
    Slug        string `json:"slug" binding:"required"`
    DisplayName string `json:"displayName" binding:"required"`
    Reason      string `json:"reason"`
  }
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_argument", err)
    return
  }
  chain, err := h.chains.Create(c.Request.Context(), req.Slug, req.DisplayName, req.Reason)
  if err != nil {
    RespondDomainError(c, err)
    return
  }
  c.JSON(http.StatusCreated, gin.H{"chain": chain})
}

// GET /api/chains/:slug — metadata + stats + the caller's next claimed
// chapter in one response.
func (h *ChainHandler) Fetch(c *gin.Context) {
  view, err := h.chains.FetchView(c.Request.Context(), c.Param("slug"), middleware.HolderID(c), c.Query("strategy"))
  if err != nil {
    RespondDomainError(c, err)
    return
  }
  RespondOK(c, view)
}

// GET /api/chains/:slug/stats — lightweight polling surface.
func (h *ChainHandler) Stats(c *gin.Context) {
  chain, err := h.chains.GetBySlug(c.Request.Context(), c.Param("slug"))
  if err != nil {
    RespondDomainError(c, err)
    return
  }
  stats, err := h.stats.StatsFor(c.Request.Context(), nil, chain.ID)
  if err != nil {
    RespondDomainError(c, err)
    return
  }
  RespondOK(c, gin.H{"stats": stats})
}

// POST /api/chains/:slug/claim
func (h *ChainHandler) Claim(c *gin.Context) {
  holder := middleware.HolderID(c)
  if holder == "" {
    RespondError(c, http.StatusBadRequest, "invalid_argument", errors.New("holder identity required"))
    return
  }
  var req struct {
    Strategy string `json:"strategy"`
  }
  _ = c.ShouldBindJSON(&req)

  chain, err := h.chains.GetBySlug(c.Request.Context(), c.Param("slug"))
  if err != nil {
    RespondDomainError(c, err)
    return
  }
  assignment, err := h.assignments.ClaimNext(c.Request.Context(), chain.ID, holder, req.Strategy)
  if err != nil {
    RespondDomainError(c, err)
    return
  }
  RespondOK(c, gin.H{"assignment": assignment})
}

// POST /api/chains/:slug/release
func (h *ChainHandler) Release(c *gin.Context) {
  holder := middleware.HolderID(c)
  if holder == "" {
    RespondError(c, http.StatusBadRequest, "invalid_argument", errors.New("holder identity required"))
    return
  }
  var req struct {
    ChapterNumber int `json:"chapterNumber" binding:"required"`
  }
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_argument", err)
    return
  }
  chain, err := h.chains.GetBySlug(c.Request.Context(), c.Param("slug"))
  if err != nil {
    RespondDomainError(c, err)
    return
  }
  if err := h.assignments.Release(c.Request.Context(), chain.ID, req.ChapterNumber, holder); err != nil {
    RespondDomainError(c, err)
    return
  }
  c.Status(http.StatusNoContent)
}

// POST /api/chains/:slug/complete — idempotent: repeating the call with
// the same key returns the same record and unchanged counters. The reply
// carries refreshed stats and the holder's next claimed chapter so the
// client keeps reading without another round-trip.
func (h *ChainHandler) Complete(c *gin.Context) {
  holder := middleware.HolderID(c)
  if holder == "" {
    RespondError(c, http.StatusBadRequest, "invalid_argument", errors.New("holder identity required"))
    return
  }
  var req struct {
    ChapterNumber  int    `json:"chapterNumber" binding:"required"`
    IdempotencyKey string `json:"idempotencyKey" binding:"required"`
    Strategy       string `json:"strategy"`
  }
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_argument", err)
    return
  }
  ctx := c.Request.Context()
  chain, err := h.chains.GetBySlug(ctx, c.Param("slug"))
  if err != nil {
    RespondDomainError(c, err)
    return
  }

  result, err := h.completions.Complete(ctx, chain.ID, req.ChapterNumber, holder, req.IdempotencyKey)
  if err != nil {
    RespondDomainError(c, err)
    return
  }

  stats, err := h.stats.StatsFor(ctx, nil, chain.ID)
  if err != nil {
    RespondDomainError(c, err)
    return
  }
  if result.New && h.notifier != nil {
    if result.RolledTo > 0 {
      h.notifier.CycleRolledOver(ctx, chain.Slug, result.RolledTo, stats)
    } else {
      h.notifier.StatsUpdated(ctx, chain.Slug, stats)
    }
  }

  next, err := h.assignments.ClaimNext(ctx, chain.ID, holder, req.Strategy)
  if err != nil && !errors.Is(err, apperrors.ErrNoChapterAvailable) {
    RespondDomainError(c, err)
    return
  }

  RespondOK(c, gin.H{
    "completion": result.Record,
    "duplicate":  !result.New,
    "stats":      stats,
    "next":       next,
  })
}
