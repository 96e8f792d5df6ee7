package repos

import (
  "context"
  "testing"
  "time"
  "github.com/avelir/psalter-backend/internal/types"
)

func TestInsertIdempotentReturnsOriginalRow(t *testing.T) {
  gdb := newTestDB(t)
  log := newTestLogger(t)
  chain := newTestChain(t, gdb, log, "advent")
  repo := NewCompletionRepo(gdb, log)
  ctx := context.Background()
  now := time.Now().UTC()

  first, inserted, err := repo.InsertIdempotent(ctx, nil, &types.CompletionRecord{
    ChainID:        chain.ID,
    ChapterNumber:  23,
    CycleNumber:    1,
    HolderID:       "device-a",
    IdempotencyKey: "key-1",
    CompletedAt:    now,
  })
  if err != nil {
    t.Fatalf("insert: %v", err)
  }
  if !inserted {
    t.Fatalf("first insert should create the row")
  }

  second, inserted, err := repo.InsertIdempotent(ctx, nil, &types.CompletionRecord{
    ChainID:        chain.ID,
    ChapterNumber:  99,
    CycleNumber:    2,
    HolderID:       "device-b",
    IdempotencyKey: "key-1",
    CompletedAt:    now.Add(time.Hour),
  })
  if err != nil {
    t.Fatalf("replay: %v", err)
  }
  if inserted {
    t.Fatalf("replay with the same key must not insert")
  }
  if second.ID != first.ID || second.ChapterNumber != 23 || second.HolderID != "device-a" {
    t.Fatalf("replay returned a different row: %+v", second)
  }

  n, err := repo.CountByChain(ctx, nil, chain.ID)
  if err != nil {
    t.Fatalf("count: %v", err)
  }
  if n != 1 {
    t.Fatalf("count = %d, want 1", n)
  }
}

func TestGetByChapter(t *testing.T) {
  gdb := newTestDB(t)
  log := newTestLogger(t)
  chain := newTestChain(t, gdb, log, "lent")
  repo := NewCompletionRepo(gdb, log)
  ctx := context.Background()

  if _, _, err := repo.InsertIdempotent(ctx, nil, &types.CompletionRecord{
    ChainID:        chain.ID,
    ChapterNumber:  42,
    CycleNumber:    3,
    HolderID:       "device-a",
    IdempotencyKey: "key-42",
    CompletedAt:    time.Now().UTC(),
  }); err != nil {
    t.Fatalf("insert: %v", err)
  }

  row, err := repo.GetByChapter(ctx, nil, chain.ID, 3, 42)
  if err != nil {
    t.Fatalf("get by chapter: %v", err)
  }
  if row == nil || row.IdempotencyKey != "key-42" {
    t.Fatalf("unexpected row: %+v", row)
  }

  row, err = repo.GetByChapter(ctx, nil, chain.ID, 2, 42)
  if err != nil {
    t.Fatalf("get by chapter (other cycle): %v", err)
  }
  if row != nil {
    t.Fatalf("no record expected in cycle 2, got %+v", row)
  }
}

func TestCountByHolderAndDay(t *testing.T) {
  gdb := newTestDB(t)
  log := newTestLogger(t)
  chain := newTestChain(t, gdb, log, "ordinary")
  repo := NewCompletionRepo(gdb, log)
  ctx := context.Background()

  day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
  inside := day.Add(9 * time.Hour)
  outside := day.Add(-time.Hour)
  for i, at := range []time.Time{inside, inside.Add(time.Hour), outside} {
    if _, _, err := repo.InsertIdempotent(ctx, nil, &types.CompletionRecord{
      ChainID:        chain.ID,
      ChapterNumber:  i + 1,
      CycleNumber:    1,
      HolderID:       "device-a",
      IdempotencyKey: string(rune('a' + i)),
      CompletedAt:    at,
    }); err != nil {
      t.Fatalf("insert %d: %v", i, err)
    }
  }

  n, err := repo.CountByHolderAndDay(ctx, nil, "device-a", day, day.Add(24*time.Hour))
  if err != nil {
    t.Fatalf("count: %v", err)
  }
  if n != 2 {
    t.Fatalf("count = %d, want 2", n)
  }
}
