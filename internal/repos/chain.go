package repos

import (
  "context"
  "errors"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/avelir/psalter-backend/internal/logger"
  "github.com/avelir/psalter-backend/internal/types"
)

type ChainRepo interface {
  Create(ctx context.Context, tx *gorm.DB, row *types.Chain) (*types.Chain, error)
  GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Chain, error)
  GetBySlug(ctx context.Context, tx *gorm.DB, slug string) (*types.Chain, error)
  ListActive(ctx context.Context, tx *gorm.DB) ([]*types.Chain, error)
}

type chainRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewChainRepo(db *gorm.DB, baseLog *logger.Logger) ChainRepo {
  return &chainRepo{db: db, log: baseLog.With("repo", "ChainRepo")}
}

func (r *chainRepo) Create(ctx context.Context, tx *gorm.DB, row *types.Chain) (*types.Chain, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if row == nil {
    return nil, nil
  }
  if err := transaction.WithContext(ctx).Create(row).Error; err != nil {
    return nil, err
  }
  return row, nil
}

func (r *chainRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Chain, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if id == uuid.Nil {
    return nil, nil
  }
  var row types.Chain
  err := transaction.WithContext(ctx).
    Where("id = ?", id).
    First(&row).Error
  if errors.Is(err, gorm.ErrRecordNotFound) {
    return nil, nil
  }
  if err != nil {
    return nil, err
  }
  return &row, nil
}

func (r *chainRepo) GetBySlug(ctx context.Context, tx *gorm.DB, slug string) (*types.Chain, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if slug == "" {
    return nil, nil
  }
  var row types.Chain
  err := transaction.WithContext(ctx).
    Where("slug = ?", slug).
    First(&row).Error
  if errors.Is(err, gorm.ErrRecordNotFound) {
    return nil, nil
  }
  if err != nil {
    return nil, err
  }
  return &row, nil
}

func (r *chainRepo) ListActive(ctx context.Context, tx *gorm.DB) ([]*types.Chain, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var rows []*types.Chain
  if err := transaction.WithContext(ctx).
    Where("active = ?", true).
    Order("created_at ASC").
    Find(&rows).Error; err != nil {
    return nil, err
  }
  return rows, nil
}
