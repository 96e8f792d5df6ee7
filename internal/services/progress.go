package services

import (
  "context"
  "encoding/json"
  "fmt"
  "gorm.io/gorm"
  "github.com/avelir/psalter-backend/internal/logger"
  apperrors "github.com/avelir/psalter-backend/internal/pkg/errors"
  "github.com/avelir/psalter-backend/internal/repos"
  "github.com/avelir/psalter-backend/internal/types"
  "github.com/avelir/psalter-backend/pkg/syncstate"
)

// mergePushBudget bounds the optimistic-merge retry loop in Put. A lost
// guard means another device pushed in between; the re-merge converges.
const mergePushBudget = 8

// DayState is the wire form of one holder-day of progress.
type DayState struct {
  Day         string           `json:"day"`
  Singles     []string         `json:"singles"`
  Repeatables map[string]int64 `json:"repeatables"`
}

type ProgressService interface {
  Get(ctx context.Context, holderID, day string) (*DayState, error)
  // Put merges the pushed state into the stored row (union / per-key
  // max) and returns the merged result. Order of concurrent pushes never
  // matters.
  Put(ctx context.Context, holderID string, state DayState) (*DayState, error)
  // LinkDevice folds an anonymous device's history into an authenticated
  // account. Running it twice is a no-op.
  LinkDevice(ctx context.Context, deviceID, accountID string) error
}

type progressService struct {
  db          *gorm.DB
  log         *logger.Logger
  progress    repos.DailyProgressRepo
  assignments repos.AssignmentRepo
  completions repos.CompletionRepo
}

func NewProgressService(db *gorm.DB, log *logger.Logger, progress repos.DailyProgressRepo, assignments repos.AssignmentRepo, completions repos.CompletionRepo) ProgressService {
  return &progressService{
    db:          db,
    log:         log.With("service", "ProgressService"),
    progress:    progress,
    assignments: assignments,
    completions: completions,
  }
}

func (s *progressService) Get(ctx context.Context, holderID, day string) (*DayState, error) {
  if holderID == "" || day == "" {
    return nil, fmt.Errorf("progress get: %w: holder and day required", apperrors.ErrInvalidArgument)
  }
  row, err := s.progress.GetByHolderAndDay(ctx, nil, holderID, day)
  if err != nil {
    return nil, err
  }
  if row == nil {
    return &DayState{Day: day, Singles: []string{}, Repeatables: map[string]int64{}}, nil
  }
  p, err := decodeRow(row)
  if err != nil {
    return nil, err
  }
  return encodeState(day, p), nil
}

func (s *progressService) Put(ctx context.Context, holderID string, state DayState) (*DayState, error) {
  if holderID == "" || state.Day == "" {
    return nil, fmt.Errorf("progress put: %w: holder and day required", apperrors.ErrInvalidArgument)
  }
  pushed := syncstate.DayProgress{
    Singles:     syncstate.NewStringSet(state.Singles...),
    Repeatables: state.Repeatables,
  }
  if pushed.Repeatables == nil {
    pushed.Repeatables = map[string]int64{}
  }

  for attempt := 0; attempt < mergePushBudget; attempt++ {
    row, err := s.progress.GetByHolderAndDay(ctx, nil, holderID, state.Day)
    if err != nil {
      return nil, err
    }
    if row == nil {
      fresh, err := encodeRow(holderID, state.Day, pushed)
      if err != nil {
        return nil, err
      }
      if err := s.progress.Insert(ctx, nil, fresh); err != nil {
        // Unique (holder, day) violation: another device inserted
        // first. Fall through to the merge path.
        continue
      }
      return encodeState(state.Day, pushed), nil
    }

    stored, err := decodeRow(row)
    if err != nil {
      return nil, err
    }
    merged := syncstate.Merge(stored, pushed)
    if syncstate.Equal(merged, stored) {
      return encodeState(state.Day, stored), nil
    }
    next, err := encodeRow(holderID, state.Day, merged)
    if err != nil {
      return nil, err
    }
    ok, err := s.progress.UpdateGuarded(ctx, nil, next, row.Version)
    if err != nil {
      return nil, err
    }
    if ok {
      return encodeState(state.Day, merged), nil
    }
    // Version moved: re-read and re-merge.
  }
  return nil, fmt.Errorf("progress put: merge retry budget exhausted for holder %s day %s", holderID, state.Day)
}

func (s *progressService) LinkDevice(ctx context.Context, deviceID, accountID string) error {
  if deviceID == "" || accountID == "" {
    return fmt.Errorf("link device: %w: device and account required", apperrors.ErrInvalidArgument)
  }
  if deviceID == accountID {
    return nil
  }
  return s.db.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
    rows, err := s.progress.ListByHolder(ctx, txx, deviceID)
    if err != nil {
      return err
    }
    for _, deviceRow := range rows {
      deviceState, err := decodeRow(deviceRow)
      if err != nil {
        return err
      }
      accountRow, err := s.progress.GetByHolderAndDay(ctx, txx, accountID, deviceRow.Day)
      if err != nil {
        return err
      }
      if accountRow == nil {
        fresh, err := encodeRow(accountID, deviceRow.Day, deviceState)
        if err != nil {
          return err
        }
        if err := s.progress.Insert(ctx, txx, fresh); err != nil {
          return err
        }
      } else {
        accountState, err := decodeRow(accountRow)
        if err != nil {
          return err
        }
        merged, err := encodeRow(accountID, deviceRow.Day, syncstate.Merge(accountState, deviceState))
        if err != nil {
          return err
        }
        if ok, err := s.progress.UpdateGuarded(ctx, txx, merged, accountRow.Version); err != nil {
          return err
        } else if !ok {
          return fmt.Errorf("link device: concurrent update on %s/%s", accountID, deviceRow.Day)
        }
      }
      if err := s.progress.Delete(ctx, txx, deviceRow); err != nil {
        return err
      }
    }
    if err := s.assignments.ReassignHolder(ctx, txx, deviceID, accountID); err != nil {
      return err
    }
    if err := s.completions.ReassignHolder(ctx, txx, deviceID, accountID); err != nil {
      return err
    }
    s.log.Info("Device history linked", "device", deviceID, "account", accountID, "days", len(rows))
    return nil
  })
}

func decodeRow(row *types.DailyProgress) (syncstate.DayProgress, error) {
  p := syncstate.NewDayProgress()
  if len(row.Singles) > 0 {
    var items []string
    if err := json.Unmarshal(row.Singles, &items); err != nil {
      return p, fmt.Errorf("progress row %s/%s: bad singles: %w", row.HolderID, row.Day, err)
    }
    p.Singles = syncstate.NewStringSet(items...)
  }
  if len(row.Repeatables) > 0 {
    if err := json.Unmarshal(row.Repeatables, &p.Repeatables); err != nil {
      return p, fmt.Errorf("progress row %s/%s: bad repeatables: %w", row.HolderID, row.Day, err)
    }
  }
  return p, nil
}

func encodeRow(holderID, day string, p syncstate.DayProgress) (*types.DailyProgress, error) {
  singles, err := json.Marshal(p.Singles.Items())
  if err != nil {
    return nil, err
  }
  repeatables, err := json.Marshal(p.Repeatables)
  if err != nil {
    return nil, err
  }
  return &types.DailyProgress{
    HolderID:    holderID,
    Day:         day,
    Singles:     singles,
    Repeatables: repeatables,
  }, nil
}

func encodeState(day string, p syncstate.DayProgress) *DayState {
  return &DayState{
    Day:         day,
    Singles:     p.Singles.Items(),
    Repeatables: p.Repeatables,
  }
}
