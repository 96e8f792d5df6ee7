package server

import (
  "github.com/gin-contrib/cors"
  "github.com/gin-gonic/gin"
  "go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
  "github.com/avelir/psalter-backend/internal/handlers"
  "github.com/avelir/psalter-backend/internal/middleware"
)

type RouterConfig struct {
  ChainHandler     *handlers.ChainHandler
  ProgressHandler  *handlers.ProgressHandler
  SSEHandler       *handlers.SSEHandler
  HolderMiddleware *middleware.HolderMiddleware
  AdminMiddleware  *middleware.AdminMiddleware
}

func NewRouter(cfg RouterConfig) *gin.Engine {
  router := gin.Default()
  router.Use(otelgin.Middleware("psalter-backend"))

  // Cors
  router.Use(cors.New(cors.Config{
    AllowOrigins: []string{
      "http://localhost:80",
      "http://localhost:3000",
      "http://localhost:5174",
    },
    AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
    AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", "X-Device-ID", "X-Admin-Token"},
    AllowCredentials: true,
  }))

  router.GET("/healthcheck", handlers.HealthCheck)

  api := router.Group("/api")
  api.Use(cfg.HolderMiddleware.Resolve())
  {
    // Chains
    api.GET("/chains", cfg.ChainHandler.List)
    api.GET("/chains/:slug", cfg.ChainHandler.Fetch)
    api.GET("/chains/:slug/stats", cfg.ChainHandler.Stats)
    api.POST("/chains/:slug/claim", cfg.ChainHandler.Claim)
    api.POST("/chains/:slug/release", cfg.ChainHandler.Release)
    api.POST("/chains/:slug/complete", cfg.ChainHandler.Complete)
    // Participant sync
    api.GET("/participant/progress", cfg.ProgressHandler.Get)
    api.PUT("/participant/progress", cfg.ProgressHandler.Put)
    api.POST("/participant/link", cfg.ProgressHandler.Link)
    // SSE
    api.GET("/sse/stream", cfg.SSEHandler.Stream)
    // Admin
    admin := api.Group("/admin")
    admin.Use(cfg.AdminMiddleware.RequireAdmin())
    admin.POST("/chains", cfg.ChainHandler.Create)
  }

  return router
}
