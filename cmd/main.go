package main

import (
  "context"
  "fmt"
  "os"
  "time"
  "github.com/avelir/psalter-backend/internal/clients/redis"
  "github.com/avelir/psalter-backend/internal/db"
  "github.com/avelir/psalter-backend/internal/handlers"
  "github.com/avelir/psalter-backend/internal/logger"
  "github.com/avelir/psalter-backend/internal/middleware"
  "github.com/avelir/psalter-backend/internal/observability"
  "github.com/avelir/psalter-backend/internal/repos"
  "github.com/avelir/psalter-backend/internal/server"
  "github.com/avelir/psalter-backend/internal/services"
  "github.com/avelir/psalter-backend/internal/sse"
  "github.com/avelir/psalter-backend/internal/utils"
)

func main() {
  // Logger
  logMode := os.Getenv("LOG_MODE")
  if logMode == "" {
    logMode = "development"
  }
  log, err := logger.New(logMode)
  if err != nil {
    fmt.Printf("Failed to init logger: %v\n", err)
    os.Exit(1)
  }
  defer log.Sync()

  ctx := context.Background()

  // Tracing (no-op unless OTEL_ENABLED)
  if shutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
    ServiceName: "psalter-backend",
    Environment: utils.GetEnv("DEPLOY_ENV", "development", log),
    Version:     utils.GetEnv("SERVICE_VERSION", "dev", log),
  }); shutdown != nil {
    defer func() { _ = shutdown(context.Background()) }()
  }

  // Env
  log.Info("Loading environment variables from main...")
  jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
  adminToken := utils.GetEnv("ADMIN_TOKEN", "", log)
  assignmentTTL := utils.GetEnvAsInt("ASSIGNMENT_TTL_MINUTES", 30, log)
  claimRetryBudget := utils.GetEnvAsInt("CLAIM_RETRY_BUDGET", 5, log)

  // Postgres
  postgresService, err := db.NewPostgresService(log)
  if err != nil {
    log.Error("Postgres init failed", "error", err)
    os.Exit(1)
  }
  if err = postgresService.AutoMigrateAll(); err != nil {
    log.Error("Postgres auto migration failed", "error", err)
    os.Exit(1)
  }
  thePG := postgresService.DB()

  // Repos
  log.Info("Setting up Repos from main...")
  chainRepo := repos.NewChainRepo(thePG, log)
  assignmentRepo := repos.NewAssignmentRepo(thePG, log)
  completionRepo := repos.NewCompletionRepo(thePG, log)
  cycleStateRepo := repos.NewCycleStateRepo(thePG, log)
  dailyProgressRepo := repos.NewDailyProgressRepo(thePG, log)

  // SSE hub + optional redis fanout
  log.Info("Setting up SSE hub now...")
  sseHub := sse.NewSSEHub(log)
  var statsBus redis.StatsBus
  if os.Getenv("REDIS_ADDR") != "" {
    bus, err := redis.NewStatsBus(log)
    if err != nil {
      log.Warn("Could not init redis stats bus; running single-instance", "error", err)
    } else {
      statsBus = bus
      defer statsBus.Close()
      if err := statsBus.StartForwarder(ctx, func(m sse.SSEMessage) {
        sseHub.Broadcast(m)
      }); err != nil {
        log.Warn("Could not start redis stats forwarder", "error", err)
      }
    }
  }

  // Services
  log.Info("Setting up Services from main...")
  statsService := services.NewStatsService(thePG, log, completionRepo, assignmentRepo, cycleStateRepo)
  assignmentService := services.NewAssignmentService(thePG, log, assignmentRepo, cycleStateRepo, time.Duration(assignmentTTL)*time.Minute, claimRetryBudget)
  completionService := services.NewCompletionService(thePG, log, completionRepo, assignmentRepo, cycleStateRepo)
  chainService := services.NewChainService(thePG, log, chainRepo, cycleStateRepo, assignmentService, statsService)
  progressService := services.NewProgressService(thePG, log, dailyProgressRepo, assignmentRepo, completionRepo)
  statsNotifier := services.NewStatsNotifier(log, sseHub, statsBus)

  // Handlers
  log.Info("Setting up handlers from main...")
  chainHandler := handlers.NewChainHandler(log, chainService, assignmentService, completionService, statsService, statsNotifier)
  progressHandler := handlers.NewProgressHandler(log, progressService)
  sseHandler := handlers.NewSSEHandler(log, sseHub)

  // Middleware
  log.Info("Setting up middleware from main...")
  holderMiddleware := middleware.NewHolderMiddleware(log, jwtSecretKey)
  adminMiddleware := middleware.NewAdminMiddleware(log, adminToken)

  // Router
  log.Info("Setting up router from main...")
  router := server.NewRouter(server.RouterConfig{
    ChainHandler:     chainHandler,
    ProgressHandler:  progressHandler,
    SSEHandler:       sseHandler,
    HolderMiddleware: holderMiddleware,
    AdminMiddleware:  adminMiddleware,
  })

  port := utils.GetEnv("PORT", "8080", log)
  fmt.Printf("Server listening on :%s\n", port)
  if err := router.Run(":" + port); err != nil {
    log.Error("Server failed", "error", err)
  }
}
