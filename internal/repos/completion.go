package repos

import (
  "context"
  "errors"
  "time"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "gorm.io/gorm/clause"
  "github.com/avelir/psalter-backend/internal/logger"
  "github.com/avelir/psalter-backend/internal/types"
)

type CompletionRepo interface {
  // InsertIdempotent appends a record unless its idempotency key already
  // exists, in which case the original row comes back with inserted=false.
  InsertIdempotent(ctx context.Context, tx *gorm.DB, row *types.CompletionRecord) (*types.CompletionRecord, bool, error)
  GetByKey(ctx context.Context, tx *gorm.DB, key string) (*types.CompletionRecord, error)
  GetByChapter(ctx context.Context, tx *gorm.DB, chainID uuid.UUID, cycleNumber, chapter int) (*types.CompletionRecord, error)
  CountByChain(ctx context.Context, tx *gorm.DB, chainID uuid.UUID) (int64, error)
  CountByHolderAndDay(ctx context.Context, tx *gorm.DB, holderID string, from, to time.Time) (int64, error)
  ReassignHolder(ctx context.Context, tx *gorm.DB, fromHolder, toHolder string) error
}

type completionRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewCompletionRepo(db *gorm.DB, baseLog *logger.Logger) CompletionRepo {
  return &completionRepo{db: db, log: baseLog.With("repo", "CompletionRepo")}
}

func (r *completionRepo) InsertIdempotent(ctx context.Context, tx *gorm.DB, row *types.CompletionRecord) (*types.CompletionRecord, bool, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if row == nil {
    return nil, false, nil
  }
  res := transaction.WithContext(ctx).
    Clauses(clause.OnConflict{
      Columns:   []clause.Column{{Name: "idempotency_key"}},
      DoNothing: true,
    }).
    Create(row)
  if res.Error != nil {
    return nil, false, res.Error
  }
  if res.RowsAffected > 0 {
    return row, true, nil
  }
  existing, err := r.GetByKey(ctx, transaction, row.IdempotencyKey)
  if err != nil {
    return nil, false, err
  }
  return existing, false, nil
}

func (r *completionRepo) GetByKey(ctx context.Context, tx *gorm.DB, key string) (*types.CompletionRecord, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if key == "" {
    return nil, nil
  }
  var row types.CompletionRecord
  err := transaction.WithContext(ctx).
    Where("idempotency_key = ?", key).
    First(&row).Error
  if errors.Is(err, gorm.ErrRecordNotFound) {
    return nil, nil
  }
  if err != nil {
    return nil, err
  }
  return &row, nil
}

func (r *completionRepo) GetByChapter(ctx context.Context, tx *gorm.DB, chainID uuid.UUID, cycleNumber, chapter int) (*types.CompletionRecord, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var row types.CompletionRecord
  err := transaction.WithContext(ctx).
    Where("chain_id = ? AND cycle_number = ? AND chapter_number = ?", chainID, cycleNumber, chapter).
    Order("completed_at ASC").
    First(&row).Error
  if errors.Is(err, gorm.ErrRecordNotFound) {
    return nil, nil
  }
  if err != nil {
    return nil, err
  }
  return &row, nil
}

func (r *completionRepo) CountByChain(ctx context.Context, tx *gorm.DB, chainID uuid.UUID) (int64, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var n int64
  if err := transaction.WithContext(ctx).
    Model(&types.CompletionRecord{}).
    Where("chain_id = ?", chainID).
    Count(&n).Error; err != nil {
    return 0, err
  }
  return n, nil
}

func (r *completionRepo) CountByHolderAndDay(ctx context.Context, tx *gorm.DB, holderID string, from, to time.Time) (int64, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var n int64
  if err := transaction.WithContext(ctx).
    Model(&types.CompletionRecord{}).
    Where("holder_id = ? AND completed_at >= ? AND completed_at < ?", holderID, from, to).
    Count(&n).Error; err != nil {
    return 0, err
  }
  return n, nil
}

func (r *completionRepo) ReassignHolder(ctx context.Context, tx *gorm.DB, fromHolder, toHolder string) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if fromHolder == "" || toHolder == "" || fromHolder == toHolder {
    return nil
  }
  return transaction.WithContext(ctx).
    Model(&types.CompletionRecord{}).
    Where("holder_id = ?", fromHolder).
    Update("holder_id", toHolder).Error
}
