package services

import (
  "context"
  "testing"
  "time"
  "github.com/google/uuid"
  "gorm.io/driver/sqlite"
  "gorm.io/gorm"
  gormlogger "gorm.io/gorm/logger"
  "github.com/avelir/psalter-backend/internal/db"
  "github.com/avelir/psalter-backend/internal/logger"
  "github.com/avelir/psalter-backend/internal/repos"
  "github.com/avelir/psalter-backend/internal/types"
)

// testEnv wires the full repo/service stack against a throwaway sqlite
// database, the same shape cmd/main.go builds for postgres.
type testEnv struct {
  db          *gorm.DB
  chains      repos.ChainRepo
  assignments repos.AssignmentRepo
  completions repos.CompletionRepo
  cycles      repos.CycleStateRepo
  progress    repos.DailyProgressRepo

  assignmentSvc AssignmentService
  completionSvc CompletionService
  statsSvc      StatsService
  chainSvc      ChainService
  progressSvc   ProgressService
}

func newTestEnv(t *testing.T) *testEnv {
  t.Helper()
  dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
  gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
    Logger: gormlogger.Default.LogMode(gormlogger.Silent),
  })
  if err != nil {
    t.Fatalf("open sqlite: %v", err)
  }
  if err := db.AutoMigrate(gdb); err != nil {
    t.Fatalf("migrate: %v", err)
  }
  log, err := logger.New("development")
  if err != nil {
    t.Fatalf("logger: %v", err)
  }

  env := &testEnv{
    db:          gdb,
    chains:      repos.NewChainRepo(gdb, log),
    assignments: repos.NewAssignmentRepo(gdb, log),
    completions: repos.NewCompletionRepo(gdb, log),
    cycles:      repos.NewCycleStateRepo(gdb, log),
    progress:    repos.NewDailyProgressRepo(gdb, log),
  }
  env.assignmentSvc = NewAssignmentService(gdb, log, env.assignments, env.cycles, 30*time.Minute, 5)
  env.completionSvc = NewCompletionService(gdb, log, env.completions, env.assignments, env.cycles)
  env.statsSvc = NewStatsService(gdb, log, env.completions, env.assignments, env.cycles)
  env.chainSvc = NewChainService(gdb, log, env.chains, env.cycles, env.assignmentSvc, env.statsSvc)
  env.progressSvc = NewProgressService(gdb, log, env.progress, env.assignments, env.completions)
  return env
}

func (e *testEnv) createChain(t *testing.T, slug string) *types.Chain {
  t.Helper()
  chain, err := e.chainSvc.Create(context.Background(), slug, "Chain "+slug, "for the parish")
  if err != nil {
    t.Fatalf("create chain %q: %v", slug, err)
  }
  return chain
}
