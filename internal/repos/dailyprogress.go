package repos

import (
  "context"
  "errors"
  "time"
  "gorm.io/gorm"
  "github.com/avelir/psalter-backend/internal/logger"
  "github.com/avelir/psalter-backend/internal/types"
)

type DailyProgressRepo interface {
  GetByHolderAndDay(ctx context.Context, tx *gorm.DB, holderID, day string) (*types.DailyProgress, error)
  ListByHolder(ctx context.Context, tx *gorm.DB, holderID string) ([]*types.DailyProgress, error)
  Insert(ctx context.Context, tx *gorm.DB, row *types.DailyProgress) error
  // UpdateGuarded writes new singles/repeatables only if the row version
  // is still the one the caller read. False means the caller must re-read
  // and re-merge.
  UpdateGuarded(ctx context.Context, tx *gorm.DB, row *types.DailyProgress, fromVersion int) (bool, error)
  Delete(ctx context.Context, tx *gorm.DB, row *types.DailyProgress) error
}

type dailyProgressRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewDailyProgressRepo(db *gorm.DB, baseLog *logger.Logger) DailyProgressRepo {
  return &dailyProgressRepo{db: db, log: baseLog.With("repo", "DailyProgressRepo")}
}

func (r *dailyProgressRepo) GetByHolderAndDay(ctx context.Context, tx *gorm.DB, holderID, day string) (*types.DailyProgress, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if holderID == "" || day == "" {
    return nil, nil
  }
  var row types.DailyProgress
  err := transaction.WithContext(ctx).
    Where("holder_id = ? AND day = ?", holderID, day).
    First(&row).Error
  if errors.Is(err, gorm.ErrRecordNotFound) {
    return nil, nil
  }
  if err != nil {
    return nil, err
  }
  return &row, nil
}

func (r *dailyProgressRepo) ListByHolder(ctx context.Context, tx *gorm.DB, holderID string) ([]*types.DailyProgress, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var rows []*types.DailyProgress
  if holderID == "" {
    return rows, nil
  }
  if err := transaction.WithContext(ctx).
    Where("holder_id = ?", holderID).
    Order("day ASC").
    Find(&rows).Error; err != nil {
    return nil, err
  }
  return rows, nil
}

func (r *dailyProgressRepo) Insert(ctx context.Context, tx *gorm.DB, row *types.DailyProgress) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if row == nil {
    return nil
  }
  return transaction.WithContext(ctx).Create(row).Error
}

func (r *dailyProgressRepo) UpdateGuarded(ctx context.Context, tx *gorm.DB, row *types.DailyProgress, fromVersion int) (bool, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if row == nil {
    return false, nil
  }
  res := transaction.WithContext(ctx).
    Model(&types.DailyProgress{}).
    Where("holder_id = ? AND day = ? AND version = ?", row.HolderID, row.Day, fromVersion).
    Updates(map[string]interface{}{
      "singles":     row.Singles,
      "repeatables": row.Repeatables,
      "version":     fromVersion + 1,
      "updated_at":  time.Now().UTC(),
    })
  if res.Error != nil {
    return false, res.Error
  }
  return res.RowsAffected > 0, nil
}

func (r *dailyProgressRepo) Delete(ctx context.Context, tx *gorm.DB, row *types.DailyProgress) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if row == nil {
    return nil
  }
  return transaction.WithContext(ctx).
    Where("holder_id = ? AND day = ?", row.HolderID, row.Day).
    Delete(&types.DailyProgress{}).Error
}
