package services

import (
  "context"
  "fmt"
  "math/rand"
  "sort"
  "time"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/avelir/psalter-backend/internal/logger"
  apperrors "github.com/avelir/psalter-backend/internal/pkg/errors"
  "github.com/avelir/psalter-backend/internal/psalter"
  "github.com/avelir/psalter-backend/internal/repos"
  "github.com/avelir/psalter-backend/internal/types"
)

const (
  StrategyLowest = "lowest"
  StrategyRandom = "random"
)

type AssignmentService interface {
  // ClaimNext hands the holder an eligible chapter, preferring the one it
  // already holds. Returns apperrors.ErrNoChapterAvailable when the cycle
  // has no free chapter — a legitimate terminal state, not a failure.
  ClaimNext(ctx context.Context, chainID uuid.UUID, holderID, strategy string) (*types.Assignment, error)
  Release(ctx context.Context, chainID uuid.UUID, chapter int, holderID string) error
}

type assignmentService struct {
  db          *gorm.DB
  log         *logger.Logger
  assignments repos.AssignmentRepo
  cycles      repos.CycleStateRepo
  ttl         time.Duration
  retryBudget int
}

func NewAssignmentService(db *gorm.DB, log *logger.Logger, assignments repos.AssignmentRepo, cycles repos.CycleStateRepo, ttl time.Duration, retryBudget int) AssignmentService {
  if ttl <= 0 {
    ttl = 30 * time.Minute
  }
  if retryBudget <= 0 {
    retryBudget = 5
  }
  return &assignmentService{
    db:          db,
    log:         log.With("service", "AssignmentService"),
    assignments: assignments,
    cycles:      cycles,
    ttl:         ttl,
    retryBudget: retryBudget,
  }
}

func (s *assignmentService) ClaimNext(ctx context.Context, chainID uuid.UUID, holderID, strategy string) (*types.Assignment, error) {
  if holderID == "" {
    return nil, fmt.Errorf("claim next: %w: holder required", apperrors.ErrInvalidArgument)
  }
  now := time.Now().UTC()

  // A holder already reading a chapter keeps it; re-claiming refreshes
  // the expiry instead of spreading one participant over two chapters.
  if held, err := s.assignments.LiveForHolder(ctx, nil, chainID, holderID, now); err != nil {
    return nil, err
  } else if held != nil {
    refreshed, _, err := s.assignments.Claim(ctx, nil, chainID, held.ChapterNumber, holderID, s.ttl)
    if err != nil {
      return nil, err
    }
    if refreshed != nil {
      return refreshed, nil
    }
  }

  candidates, err := s.eligible(ctx, chainID, now)
  if err != nil {
    return nil, err
  }
  if len(candidates) == 0 {
    return nil, apperrors.ErrNoChapterAvailable
  }

  switch strategy {
  case StrategyRandom:
    rand.Shuffle(len(candidates), func(i, j int) {
      candidates[i], candidates[j] = candidates[j], candidates[i]
    })
  default:
    sort.Ints(candidates)
  }

  budget := s.retryBudget
  if budget > len(candidates) {
    budget = len(candidates)
  }
  for _, chapter := range candidates[:budget] {
    row, claimed, err := s.assignments.Claim(ctx, nil, chainID, chapter, holderID, s.ttl)
    if err != nil {
      return nil, err
    }
    if claimed {
      s.log.Debug("Chapter claimed", "chain_id", chainID, "chapter", chapter, "holder", holderID)
      return row, nil
    }
    // Conditional write lost to another holder; move to the next
    // candidate rather than rereading the whole eligible set.
  }
  return nil, apperrors.ErrNoChapterAvailable
}

func (s *assignmentService) eligible(ctx context.Context, chainID uuid.UUID, now time.Time) ([]int, error) {
  state, err := s.cycles.Get(ctx, nil, chainID)
  if err != nil {
    return nil, err
  }
  if state == nil {
    return nil, fmt.Errorf("claim next: %w: chain %s has no cycle state", apperrors.ErrNotFound, chainID)
  }
  live, err := s.assignments.LiveForChain(ctx, nil, chainID, now)
  if err != nil {
    return nil, err
  }
  held := make(map[int]bool, len(live))
  for _, a := range live {
    held[a.ChapterNumber] = true
  }
  out := make([]int, 0, psalter.ChapterCount)
  for n := 1; n <= psalter.ChapterCount; n++ {
    if state.Completed.Has(n) || held[n] {
      continue
    }
    out = append(out, n)
  }
  return out, nil
}

func (s *assignmentService) Release(ctx context.Context, chainID uuid.UUID, chapter int, holderID string) error {
  if !psalter.ValidChapter(chapter) {
    return fmt.Errorf("release: %w: chapter %d", apperrors.ErrInvalidArgument, chapter)
  }
  released, err := s.assignments.Release(ctx, nil, chainID, chapter, holderID)
  if err != nil {
    return err
  }
  if !released {
    // Not the holder (or nothing live): deliberate no-op so a stale
    // client cannot clobber someone else's claim.
    s.log.Debug("Release skipped", "chain_id", chainID, "chapter", chapter, "holder", holderID)
  }
  return nil
}
