package services

import (
  "context"
  "errors"
  "testing"
  apperrors "github.com/avelir/psalter-backend/internal/pkg/errors"
  "github.com/avelir/psalter-backend/internal/psalter"
)

func TestClaimNextHandsOutDistinctChapters(t *testing.T) {
  env := newTestEnv(t)
  chain := env.createChain(t, "advent")
  ctx := context.Background()

  a, err := env.assignmentSvc.ClaimNext(ctx, chain.ID, "device-a", StrategyLowest)
  if err != nil {
    t.Fatalf("claim a: %v", err)
  }
  b, err := env.assignmentSvc.ClaimNext(ctx, chain.ID, "device-b", StrategyLowest)
  if err != nil {
    t.Fatalf("claim b: %v", err)
  }
  if a.ChapterNumber != 1 || b.ChapterNumber != 2 {
    t.Fatalf("lowest-first should hand out 1 then 2, got %d and %d", a.ChapterNumber, b.ChapterNumber)
  }
}

func TestClaimNextIsStickyPerHolder(t *testing.T) {
  env := newTestEnv(t)
  chain := env.createChain(t, "lent")
  ctx := context.Background()

  first, err := env.assignmentSvc.ClaimNext(ctx, chain.ID, "device-a", StrategyLowest)
  if err != nil {
    t.Fatalf("claim: %v", err)
  }
  again, err := env.assignmentSvc.ClaimNext(ctx, chain.ID, "device-a", StrategyLowest)
  if err != nil {
    t.Fatalf("reclaim: %v", err)
  }
  if again.ChapterNumber != first.ChapterNumber {
    t.Fatalf("holder moved from chapter %d to %d without releasing", first.ChapterNumber, again.ChapterNumber)
  }
}

func TestClaimNextSkipsCompletedChapters(t *testing.T) {
  env := newTestEnv(t)
  chain := env.createChain(t, "ordinary")
  ctx := context.Background()

  if _, _, err := env.cycles.MarkCompleted(ctx, nil, chain.ID, 1); err != nil {
    t.Fatalf("mark: %v", err)
  }
  if _, _, err := env.cycles.MarkCompleted(ctx, nil, chain.ID, 2); err != nil {
    t.Fatalf("mark: %v", err)
  }

  got, err := env.assignmentSvc.ClaimNext(ctx, chain.ID, "device-a", StrategyLowest)
  if err != nil {
    t.Fatalf("claim: %v", err)
  }
  if got.ChapterNumber != 3 {
    t.Fatalf("expected chapter 3, got %d", got.ChapterNumber)
  }
}

func TestClaimNextExhaustedCycle(t *testing.T) {
  env := newTestEnv(t)
  chain := env.createChain(t, "vigil")
  ctx := context.Background()

  for n := 1; n < psalter.ChapterCount; n++ {
    if _, _, err := env.cycles.MarkCompleted(ctx, nil, chain.ID, n); err != nil {
      t.Fatalf("mark %d: %v", n, err)
    }
  }
  if _, err := env.assignmentSvc.ClaimNext(ctx, chain.ID, "device-a", StrategyLowest); err != nil {
    t.Fatalf("claim last chapter: %v", err)
  }

  // The single remaining chapter is now held, so a second holder has
  // nothing left to read.
  _, err := env.assignmentSvc.ClaimNext(ctx, chain.ID, "device-b", StrategyLowest)
  if !errors.Is(err, apperrors.ErrNoChapterAvailable) {
    t.Fatalf("expected ErrNoChapterAvailable, got %v", err)
  }
}

func TestRandomStrategyStaysEligible(t *testing.T) {
  env := newTestEnv(t)
  chain := env.createChain(t, "matins")
  ctx := context.Background()

  if _, _, err := env.cycles.MarkCompleted(ctx, nil, chain.ID, 50); err != nil {
    t.Fatalf("mark: %v", err)
  }
  seen := map[int]bool{}
  for i := 0; i < 5; i++ {
    holder := string(rune('a' + i))
    got, err := env.assignmentSvc.ClaimNext(ctx, chain.ID, "device-"+holder, StrategyRandom)
    if err != nil {
      t.Fatalf("claim %d: %v", i, err)
    }
    if got.ChapterNumber == 50 {
      t.Fatalf("random strategy handed out a completed chapter")
    }
    if seen[got.ChapterNumber] {
      t.Fatalf("chapter %d handed out twice", got.ChapterNumber)
    }
    seen[got.ChapterNumber] = true
  }
}

func TestServiceReleaseIgnoresNonHolder(t *testing.T) {
  env := newTestEnv(t)
  chain := env.createChain(t, "compline")
  ctx := context.Background()

  got, err := env.assignmentSvc.ClaimNext(ctx, chain.ID, "device-a", StrategyLowest)
  if err != nil {
    t.Fatalf("claim: %v", err)
  }
  if err := env.assignmentSvc.Release(ctx, chain.ID, got.ChapterNumber, "device-b"); err != nil {
    t.Fatalf("non-holder release should be a silent no-op, got %v", err)
  }

  // The chapter is still held, so device-b gets the next one.
  next, err := env.assignmentSvc.ClaimNext(ctx, chain.ID, "device-b", StrategyLowest)
  if err != nil {
    t.Fatalf("claim: %v", err)
  }
  if next.ChapterNumber == got.ChapterNumber {
    t.Fatalf("chapter %d was stolen after a non-holder release", got.ChapterNumber)
  }

  if err := env.assignmentSvc.Release(ctx, chain.ID, got.ChapterNumber, "device-a"); err != nil {
    t.Fatalf("holder release: %v", err)
  }
  back, err := env.assignmentSvc.ClaimNext(ctx, chain.ID, "device-c", StrategyLowest)
  if err != nil {
    t.Fatalf("claim after release: %v", err)
  }
  if back.ChapterNumber != got.ChapterNumber {
    t.Fatalf("released chapter %d should be handed out again, got %d", got.ChapterNumber, back.ChapterNumber)
  }
}
