package repos

import (
  "context"
  "testing"
  "time"
)

func TestClaimMutualExclusion(t *testing.T) {
  gdb := newTestDB(t)
  log := newTestLogger(t)
  chain := newTestChain(t, gdb, log, "advent")
  repo := NewAssignmentRepo(gdb, log)
  ctx := context.Background()

  first, won, err := repo.Claim(ctx, nil, chain.ID, 23, "device-a", 30*time.Minute)
  if err != nil {
    t.Fatalf("claim: %v", err)
  }
  if !won {
    t.Fatalf("first claim should win")
  }
  if first.HolderID != "device-a" || first.ChapterNumber != 23 {
    t.Fatalf("unexpected row: %+v", first)
  }

  _, won, err = repo.Claim(ctx, nil, chain.ID, 23, "device-b", 30*time.Minute)
  if err != nil {
    t.Fatalf("claim: %v", err)
  }
  if won {
    t.Fatalf("second holder must not take a live chapter")
  }
}

func TestClaimRefreshBySameHolder(t *testing.T) {
  gdb := newTestDB(t)
  log := newTestLogger(t)
  chain := newTestChain(t, gdb, log, "lent")
  repo := NewAssignmentRepo(gdb, log)
  ctx := context.Background()

  first, _, err := repo.Claim(ctx, nil, chain.ID, 5, "device-a", time.Minute)
  if err != nil {
    t.Fatalf("claim: %v", err)
  }
  second, won, err := repo.Claim(ctx, nil, chain.ID, 5, "device-a", time.Hour)
  if err != nil {
    t.Fatalf("reclaim: %v", err)
  }
  if !won {
    t.Fatalf("same holder should be able to refresh its own claim")
  }
  if !second.ExpiresAt.After(first.ExpiresAt) {
    t.Fatalf("refresh did not extend the lease: %v -> %v", first.ExpiresAt, second.ExpiresAt)
  }
}

func TestClaimTakesExpiredChapter(t *testing.T) {
  gdb := newTestDB(t)
  log := newTestLogger(t)
  chain := newTestChain(t, gdb, log, "ordinary")
  repo := NewAssignmentRepo(gdb, log)
  ctx := context.Background()

  if _, _, err := repo.Claim(ctx, nil, chain.ID, 90, "device-a", -time.Minute); err != nil {
    t.Fatalf("claim: %v", err)
  }
  row, won, err := repo.Claim(ctx, nil, chain.ID, 90, "device-b", 30*time.Minute)
  if err != nil {
    t.Fatalf("claim after expiry: %v", err)
  }
  if !won {
    t.Fatalf("expired chapter should be claimable by a new holder")
  }
  if row.HolderID != "device-b" {
    t.Fatalf("holder not replaced: %+v", row)
  }
}

func TestReleaseByNonHolderIsNoop(t *testing.T) {
  gdb := newTestDB(t)
  log := newTestLogger(t)
  chain := newTestChain(t, gdb, log, "vigil")
  repo := NewAssignmentRepo(gdb, log)
  ctx := context.Background()

  if _, _, err := repo.Claim(ctx, nil, chain.ID, 7, "device-a", time.Hour); err != nil {
    t.Fatalf("claim: %v", err)
  }
  released, err := repo.Release(ctx, nil, chain.ID, 7, "device-b")
  if err != nil {
    t.Fatalf("release: %v", err)
  }
  if released {
    t.Fatalf("non-holder release must not touch the row")
  }

  live, err := repo.LiveForHolder(ctx, nil, chain.ID, "device-a", time.Now().UTC())
  if err != nil {
    t.Fatalf("live for holder: %v", err)
  }
  if live == nil || live.ChapterNumber != 7 {
    t.Fatalf("original claim should survive: %+v", live)
  }

  released, err = repo.Release(ctx, nil, chain.ID, 7, "device-a")
  if err != nil {
    t.Fatalf("release by holder: %v", err)
  }
  if !released {
    t.Fatalf("holder release should succeed")
  }
}

func TestLiveForChainSkipsExpiredAndReleased(t *testing.T) {
  gdb := newTestDB(t)
  log := newTestLogger(t)
  chain := newTestChain(t, gdb, log, "matins")
  repo := NewAssignmentRepo(gdb, log)
  ctx := context.Background()

  if _, _, err := repo.Claim(ctx, nil, chain.ID, 1, "device-a", time.Hour); err != nil {
    t.Fatalf("claim: %v", err)
  }
  if _, _, err := repo.Claim(ctx, nil, chain.ID, 2, "device-b", -time.Minute); err != nil {
    t.Fatalf("claim: %v", err)
  }
  if _, _, err := repo.Claim(ctx, nil, chain.ID, 3, "device-c", time.Hour); err != nil {
    t.Fatalf("claim: %v", err)
  }
  if _, err := repo.Release(ctx, nil, chain.ID, 3, "device-c"); err != nil {
    t.Fatalf("release: %v", err)
  }

  live, err := repo.LiveForChain(ctx, nil, chain.ID, time.Now().UTC())
  if err != nil {
    t.Fatalf("live for chain: %v", err)
  }
  if len(live) != 1 || live[0].ChapterNumber != 1 {
    t.Fatalf("expected only chapter 1 live, got %+v", live)
  }

  n, err := repo.CountLive(ctx, nil, chain.ID, time.Now().UTC())
  if err != nil {
    t.Fatalf("count live: %v", err)
  }
  if n != 1 {
    t.Fatalf("count live = %d, want 1", n)
  }
}

func TestReassignHolderMovesLiveClaims(t *testing.T) {
  gdb := newTestDB(t)
  log := newTestLogger(t)
  chain := newTestChain(t, gdb, log, "compline")
  repo := NewAssignmentRepo(gdb, log)
  ctx := context.Background()

  if _, _, err := repo.Claim(ctx, nil, chain.ID, 11, "device-a", time.Hour); err != nil {
    t.Fatalf("claim: %v", err)
  }
  if err := repo.ReassignHolder(ctx, nil, "device-a", "user-1"); err != nil {
    t.Fatalf("reassign: %v", err)
  }
  live, err := repo.LiveForHolder(ctx, nil, chain.ID, "user-1", time.Now().UTC())
  if err != nil {
    t.Fatalf("live for holder: %v", err)
  }
  if live == nil || live.ChapterNumber != 11 {
    t.Fatalf("claim not moved to new holder: %+v", live)
  }
}
