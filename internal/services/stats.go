package services

import (
  "context"
  "fmt"
  "time"
  "github.com/google/uuid"
  "golang.org/x/sync/singleflight"
  "gorm.io/gorm"
  "github.com/avelir/psalter-backend/internal/logger"
  "github.com/avelir/psalter-backend/internal/psalter"
  "github.com/avelir/psalter-backend/internal/repos"
)

// ChainStats is always derived from the ledgers on read; there is no
// stored counter to drift out of sync. For any active cycle,
// Available + CurrentlyReading + completed-set size == 150.
type ChainStats struct {
  TotalCompleted   int64 `json:"total_completed"`
  CyclesCompleted  int   `json:"cycles_completed"`
  CurrentCycle     int   `json:"current_cycle"`
  CurrentlyReading int   `json:"currently_reading"`
  CompletedInCycle int   `json:"completed_in_cycle"`
  Available        int   `json:"available"`
}

type StatsService interface {
  StatsFor(ctx context.Context, tx *gorm.DB, chainID uuid.UUID) (ChainStats, error)
}

type statsService struct {
  db          *gorm.DB
  log         *logger.Logger
  completions repos.CompletionRepo
  assignments repos.AssignmentRepo
  cycles      repos.CycleStateRepo
  group       singleflight.Group
}

func NewStatsService(db *gorm.DB, log *logger.Logger, completions repos.CompletionRepo, assignments repos.AssignmentRepo, cycles repos.CycleStateRepo) StatsService {
  return &statsService{
    db:          db,
    log:         log.With("service", "StatsService"),
    completions: completions,
    assignments: assignments,
    cycles:      cycles,
  }
}

func (s *statsService) StatsFor(ctx context.Context, tx *gorm.DB, chainID uuid.UUID) (ChainStats, error) {
  if tx != nil {
    // Inside a caller's transaction, read directly: singleflight would
    // share results across transaction boundaries.
    return s.compute(ctx, tx, chainID)
  }
  v, err, _ := s.group.Do(chainID.String(), func() (interface{}, error) {
    return s.compute(ctx, nil, chainID)
  })
  if err != nil {
    return ChainStats{}, err
  }
  return v.(ChainStats), nil
}

func (s *statsService) compute(ctx context.Context, tx *gorm.DB, chainID uuid.UUID) (ChainStats, error) {
  now := time.Now().UTC()

  state, err := s.cycles.Get(ctx, tx, chainID)
  if err != nil {
    return ChainStats{}, fmt.Errorf("stats: cycle state: %w", err)
  }
  if state == nil {
    return ChainStats{}, fmt.Errorf("stats: no cycle state for chain %s", chainID)
  }

  total, err := s.completions.CountByChain(ctx, tx, chainID)
  if err != nil {
    return ChainStats{}, fmt.Errorf("stats: count completions: %w", err)
  }

  reading, err := s.assignments.CountLive(ctx, tx, chainID, now)
  if err != nil {
    return ChainStats{}, fmt.Errorf("stats: count live assignments: %w", err)
  }

  completedInCycle := state.Completed.Count()
  available := psalter.ChapterCount - completedInCycle - int(reading)
  if available < 0 {
    available = 0
  }

  return ChainStats{
    TotalCompleted:   total,
    CyclesCompleted:  state.CycleNumber - 1,
    CurrentCycle:     state.CycleNumber,
    CurrentlyReading: int(reading),
    CompletedInCycle: completedInCycle,
    Available:        available,
  }, nil
}
