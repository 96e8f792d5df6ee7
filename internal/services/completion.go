package services

import (
  "context"
  "fmt"
  "time"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/avelir/psalter-backend/internal/logger"
  apperrors "github.com/avelir/psalter-backend/internal/pkg/errors"
  "github.com/avelir/psalter-backend/internal/psalter"
  "github.com/avelir/psalter-backend/internal/repos"
  "github.com/avelir/psalter-backend/internal/types"
)

// CompletionResult reports what a complete call did. Repeated calls with
// the same idempotency key return the same Record with New=false.
type CompletionResult struct {
  Record   *types.CompletionRecord
  New      bool
  RolledTo int // non-zero when this completion closed the cycle
}

type CompletionService interface {
  Complete(ctx context.Context, chainID uuid.UUID, chapter int, holderID, idempotencyKey string) (*CompletionResult, error)
}

type completionService struct {
  db          *gorm.DB
  log         *logger.Logger
  completions repos.CompletionRepo
  assignments repos.AssignmentRepo
  cycles      repos.CycleStateRepo
}

func NewCompletionService(db *gorm.DB, log *logger.Logger, completions repos.CompletionRepo, assignments repos.AssignmentRepo, cycles repos.CycleStateRepo) CompletionService {
  return &completionService{
    db:          db,
    log:         log.With("service", "CompletionService"),
    completions: completions,
    assignments: assignments,
    cycles:      cycles,
  }
}

// Complete runs the whole transition in one transaction: the moment the
// record becomes visible, the chapter is also marked in the cycle set and
// its assignment is released — there is no window where it looks both
// completed and claimable.
func (s *completionService) Complete(ctx context.Context, chainID uuid.UUID, chapter int, holderID, idempotencyKey string) (*CompletionResult, error) {
  if !psalter.ValidChapter(chapter) {
    return nil, fmt.Errorf("complete: %w: chapter %d", apperrors.ErrInvalidArgument, chapter)
  }
  if holderID == "" || idempotencyKey == "" {
    return nil, fmt.Errorf("complete: %w: holder and idempotency key required", apperrors.ErrInvalidArgument)
  }

  var result CompletionResult
  err := s.db.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
    // Retried call: hand back the original record, touch nothing.
    if existing, err := s.completions.GetByKey(ctx, txx, idempotencyKey); err != nil {
      return err
    } else if existing != nil {
      result = CompletionResult{Record: existing, New: false}
      return nil
    }

    // Win the cycle-set bit first; only the winner appends a record, so
    // a chapter is counted once per cycle no matter how many holders
    // race on it.
    state, flipped, err := s.cycles.MarkCompleted(ctx, txx, chainID, chapter)
    if err != nil {
      return err
    }
    if !flipped {
      existing, err := s.completions.GetByChapter(ctx, txx, chainID, state.CycleNumber, chapter)
      if err != nil {
        return err
      }
      if existing != nil {
        result = CompletionResult{Record: existing, New: false}
        return nil
      }
      // Bit set but no record: only reachable if the winning insert is
      // mid-flight in another transaction; surface a retryable error.
      return fmt.Errorf("complete: chapter %d already marked, record not yet visible", chapter)
    }

    row := &types.CompletionRecord{
      ChainID:        chainID,
      ChapterNumber:  chapter,
      CycleNumber:    state.CycleNumber,
      HolderID:       holderID,
      IdempotencyKey: idempotencyKey,
      CompletedAt:    time.Now().UTC(),
    }
    rec, _, err := s.completions.InsertIdempotent(ctx, txx, row)
    if err != nil {
      return err
    }

    if err := s.assignments.ReleaseChapter(ctx, txx, chainID, chapter); err != nil {
      return err
    }

    result = CompletionResult{Record: rec, New: true}
    if state.Completed.Full() {
      rolled, err := s.cycles.Rollover(ctx, txx, chainID, state.CycleNumber)
      if err != nil {
        return err
      }
      if rolled {
        result.RolledTo = state.CycleNumber + 1
        s.log.Info("Cycle completed, rolling over",
          "chain_id", chainID, "finished_cycle", state.CycleNumber)
      }
      // A lost rollover means a racer already advanced the cycle; the
      // already-incremented state is exactly what we wanted.
    }
    return nil
  })
  if err != nil {
    return nil, err
  }
  return &result, nil
}
