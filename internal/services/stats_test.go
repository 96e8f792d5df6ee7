package services

import (
  "context"
  "fmt"
  "testing"
  "github.com/avelir/psalter-backend/internal/psalter"
)

func TestStatsIdentity(t *testing.T) {
  env := newTestEnv(t)
  chain := env.createChain(t, "advent")
  ctx := context.Background()

  for n := 1; n <= 10; n++ {
    if _, err := env.completionSvc.Complete(ctx, chain.ID, n, "device-a", fmt.Sprintf("k-%d", n)); err != nil {
      t.Fatalf("complete %d: %v", n, err)
    }
  }
  for _, holder := range []string{"device-a", "device-b", "device-c"} {
    if _, err := env.assignmentSvc.ClaimNext(ctx, chain.ID, holder, StrategyLowest); err != nil {
      t.Fatalf("claim %s: %v", holder, err)
    }
  }

  stats, err := env.statsSvc.StatsFor(ctx, nil, chain.ID)
  if err != nil {
    t.Fatalf("stats: %v", err)
  }
  if stats.CompletedInCycle != 10 || stats.CurrentlyReading != 3 {
    t.Fatalf("unexpected stats: %+v", stats)
  }
  if stats.Available+stats.CurrentlyReading+stats.CompletedInCycle != psalter.ChapterCount {
    t.Fatalf("identity broken: %+v", stats)
  }
  if stats.TotalCompleted != 10 || stats.CurrentCycle != 1 || stats.CyclesCompleted != 0 {
    t.Fatalf("unexpected totals: %+v", stats)
  }
}

func TestStatsSurviveRollover(t *testing.T) {
  env := newTestEnv(t)
  chain := env.createChain(t, "lent")
  ctx := context.Background()

  for n := 1; n <= psalter.ChapterCount; n++ {
    if _, err := env.completionSvc.Complete(ctx, chain.ID, n, "device-a", fmt.Sprintf("c1-%d", n)); err != nil {
      t.Fatalf("complete %d: %v", n, err)
    }
  }
  if _, err := env.completionSvc.Complete(ctx, chain.ID, 1, "device-b", "c2-1"); err != nil {
    t.Fatalf("complete in cycle 2: %v", err)
  }

  stats, err := env.statsSvc.StatsFor(ctx, nil, chain.ID)
  if err != nil {
    t.Fatalf("stats: %v", err)
  }
  if stats.TotalCompleted != int64(psalter.ChapterCount)+1 {
    t.Fatalf("total completed = %d, want %d", stats.TotalCompleted, psalter.ChapterCount+1)
  }
  if stats.CyclesCompleted != 1 || stats.CurrentCycle != 2 || stats.CompletedInCycle != 1 {
    t.Fatalf("cycle counters wrong after rollover: %+v", stats)
  }
  if stats.Available+stats.CurrentlyReading+stats.CompletedInCycle != psalter.ChapterCount {
    t.Fatalf("identity broken after rollover: %+v", stats)
  }
}
