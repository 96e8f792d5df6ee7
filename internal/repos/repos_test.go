package repos

import (
  "context"
  "testing"
  "github.com/google/uuid"
  "gorm.io/driver/sqlite"
  "gorm.io/gorm"
  gormlogger "gorm.io/gorm/logger"
  "github.com/avelir/psalter-backend/internal/db"
  "github.com/avelir/psalter-backend/internal/logger"
  "github.com/avelir/psalter-backend/internal/types"
)

func newTestDB(t *testing.T) *gorm.DB {
  t.Helper()
  // A named in-memory database: the pool's connections all see the same
  // tables, and each test still gets its own database.
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
  return gdb
}

func newTestLogger(t *testing.T) *logger.Logger {
  t.Helper()
  log, err := logger.New("development")
  if err != nil {
    t.Fatalf("logger: %v", err)
  }
  return log
}

func newTestChain(t *testing.T, gdb *gorm.DB, log *logger.Logger, slug string) *types.Chain {
  t.Helper()
  ctx := context.Background()
  chain, err := NewChainRepo(gdb, log).Create(ctx, nil, &types.Chain{
    Slug:        slug,
    DisplayName: "Test Chain",
    Active:      true,
  })
  if err != nil {
    t.Fatalf("create chain: %v", err)
  }
  if chain.ID == uuid.Nil {
    t.Fatalf("chain id not generated")
  }
  if _, err := NewCycleStateRepo(gdb, log).Create(ctx, nil, chain.ID); err != nil {
    t.Fatalf("create cycle state: %v", err)
  }
  return chain
}
