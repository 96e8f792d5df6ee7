package repos

import (
  "context"
  "errors"
  "fmt"
  "time"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/avelir/psalter-backend/internal/logger"
  "github.com/avelir/psalter-backend/internal/psalter"
  "github.com/avelir/psalter-backend/internal/types"
)

// markRetryBudget bounds the compare-and-swap loop in MarkCompleted. Each
// failed swap means a concurrent completion moved the set, so the loop
// terminates quickly in practice.
const markRetryBudget = 16

type CycleStateRepo interface {
  Create(ctx context.Context, tx *gorm.DB, chainID uuid.UUID) (*types.CycleState, error)
  Get(ctx context.Context, tx *gorm.DB, chainID uuid.UUID) (*types.CycleState, error)
  // MarkCompleted sets the chapter bit with a compare-and-swap on the
  // serialized set. Returns the state after the write and whether this
  // call was the one that flipped the bit.
  MarkCompleted(ctx context.Context, tx *gorm.DB, chainID uuid.UUID, chapter int) (*types.CycleState, bool, error)
  // Rollover advances the cycle, guarded by the cycle number the caller
  // observed. A false return means a racer already advanced it.
  Rollover(ctx context.Context, tx *gorm.DB, chainID uuid.UUID, fromCycle int) (bool, error)
}

type cycleStateRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewCycleStateRepo(db *gorm.DB, baseLog *logger.Logger) CycleStateRepo {
  return &cycleStateRepo{db: db, log: baseLog.With("repo", "CycleStateRepo")}
}

func (r *cycleStateRepo) Create(ctx context.Context, tx *gorm.DB, chainID uuid.UUID) (*types.CycleState, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  row := &types.CycleState{
    ChainID:     chainID,
    CycleNumber: 1,
  }
  if err := transaction.WithContext(ctx).Create(row).Error; err != nil {
    return nil, err
  }
  return row, nil
}

func (r *cycleStateRepo) Get(ctx context.Context, tx *gorm.DB, chainID uuid.UUID) (*types.CycleState, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var row types.CycleState
  err := transaction.WithContext(ctx).
    Where("chain_id = ?", chainID).
    First(&row).Error
  if errors.Is(err, gorm.ErrRecordNotFound) {
    return nil, nil
  }
  if err != nil {
    return nil, err
  }
  return &row, nil
}

func (r *cycleStateRepo) MarkCompleted(ctx context.Context, tx *gorm.DB, chainID uuid.UUID, chapter int) (*types.CycleState, bool, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if !psalter.ValidChapter(chapter) {
    return nil, false, fmt.Errorf("mark completed: invalid chapter %d", chapter)
  }
  for attempt := 0; attempt < markRetryBudget; attempt++ {
    state, err := r.Get(ctx, transaction, chainID)
    if err != nil {
      return nil, false, err
    }
    if state == nil {
      return nil, false, fmt.Errorf("mark completed: no cycle state for chain %s", chainID)
    }
    if state.Completed.Has(chapter) {
      return state, false, nil
    }
    oldValue, err := state.Completed.Value()
    if err != nil {
      return nil, false, err
    }
    next := state.Completed
    next.Set(chapter)
    newValue, err := next.Value()
    if err != nil {
      return nil, false, err
    }
    res := transaction.WithContext(ctx).
      Model(&types.CycleState{}).
      Where("chain_id = ? AND cycle_number = ? AND completed = ?", chainID, state.CycleNumber, oldValue).
      Updates(map[string]interface{}{
        "completed":  newValue,
        "updated_at": time.Now().UTC(),
      })
    if res.Error != nil {
      return nil, false, res.Error
    }
    if res.RowsAffected > 0 {
      state.Completed = next
      return state, true, nil
    }
    // Swap lost: another completion (or a rollover) changed the row.
    // Re-read and try again.
  }
  return nil, false, fmt.Errorf("mark completed: retry budget exhausted for chain %s", chainID)
}

func (r *cycleStateRepo) Rollover(ctx context.Context, tx *gorm.DB, chainID uuid.UUID, fromCycle int) (bool, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  empty, err := psalter.ChapterSet{}.Value()
  if err != nil {
    return false, err
  }
  res := transaction.WithContext(ctx).
    Model(&types.CycleState{}).
    Where("chain_id = ? AND cycle_number = ?", chainID, fromCycle).
    Updates(map[string]interface{}{
      "cycle_number": fromCycle + 1,
      "completed":    empty,
      "updated_at":   time.Now().UTC(),
    })
  if res.Error != nil {
    return false, res.Error
  }
  return res.RowsAffected > 0, nil
}
