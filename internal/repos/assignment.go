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

type AssignmentRepo interface {
  // Claim tries to take custody of one chapter for holderID. The write is
  // a conditional upsert on the (chain_id, chapter_number) row: it wins
  // only when the row is released, expired, or already held by the same
  // holder (refresh). Returns false when another live holder won the race.
  Claim(ctx context.Context, tx *gorm.DB, chainID uuid.UUID, chapter int, holderID string, ttl time.Duration) (*types.Assignment, bool, error)
  Release(ctx context.Context, tx *gorm.DB, chainID uuid.UUID, chapter int, holderID string) (bool, error)
  ReleaseChapter(ctx context.Context, tx *gorm.DB, chainID uuid.UUID, chapter int) error
  LiveForChain(ctx context.Context, tx *gorm.DB, chainID uuid.UUID, now time.Time) ([]*types.Assignment, error)
  LiveForHolder(ctx context.Context, tx *gorm.DB, chainID uuid.UUID, holderID string, now time.Time) (*types.Assignment, error)
  CountLive(ctx context.Context, tx *gorm.DB, chainID uuid.UUID, now time.Time) (int64, error)
  ReassignHolder(ctx context.Context, tx *gorm.DB, fromHolder, toHolder string) error
}

type assignmentRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewAssignmentRepo(db *gorm.DB, baseLog *logger.Logger) AssignmentRepo {
  return &assignmentRepo{db: db, log: baseLog.With("repo", "AssignmentRepo")}
}

func (r *assignmentRepo) Claim(ctx context.Context, tx *gorm.DB, chainID uuid.UUID, chapter int, holderID string, ttl time.Duration) (*types.Assignment, bool, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  now := time.Now().UTC()
  row := &types.Assignment{
    ChainID:       chainID,
    ChapterNumber: chapter,
    HolderID:      holderID,
    State:         types.AssignmentStateAssigned,
    ClaimedAt:     now,
    ExpiresAt:     now.Add(ttl),
  }
  res := transaction.WithContext(ctx).
    Clauses(clause.OnConflict{
      Columns: []clause.Column{{Name: "chain_id"}, {Name: "chapter_number"}},
      DoUpdates: clause.Assignments(map[string]interface{}{
        "holder_id":  holderID,
        "state":      types.AssignmentStateAssigned,
        "claimed_at": now,
        "expires_at": now.Add(ttl),
        "updated_at": now,
      }),
      Where: clause.Where{Exprs: []clause.Expression{
        clause.Expr{
          SQL:  "assignment.state = ? OR assignment.expires_at <= ? OR assignment.holder_id = ?",
          Vars: []interface{}{types.AssignmentStateReleased, now, holderID},
        },
      }},
    }).
    Create(row)
  if res.Error != nil {
    return nil, false, res.Error
  }
  if res.RowsAffected == 0 {
    // Lost to a live holder.
    return nil, false, nil
  }
  // Re-read so the caller sees the canonical row (the upsert path does not
  // fill the struct's ID).
  var out types.Assignment
  err := transaction.WithContext(ctx).
    Where("chain_id = ? AND chapter_number = ?", chainID, chapter).
    First(&out).Error
  if err != nil {
    return nil, false, err
  }
  return &out, true, nil
}

func (r *assignmentRepo) Release(ctx context.Context, tx *gorm.DB, chainID uuid.UUID, chapter int, holderID string) (bool, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  res := transaction.WithContext(ctx).
    Model(&types.Assignment{}).
    Where("chain_id = ? AND chapter_number = ? AND holder_id = ? AND state = ?",
      chainID, chapter, holderID, types.AssignmentStateAssigned).
    Updates(map[string]interface{}{
      "state":      types.AssignmentStateReleased,
      "updated_at": time.Now().UTC(),
    })
  if res.Error != nil {
    return false, res.Error
  }
  return res.RowsAffected > 0, nil
}

// ReleaseChapter drops custody of a chapter regardless of holder. Used when
// a completion lands: the chapter is done, nobody should keep holding it.
func (r *assignmentRepo) ReleaseChapter(ctx context.Context, tx *gorm.DB, chainID uuid.UUID, chapter int) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  return transaction.WithContext(ctx).
    Model(&types.Assignment{}).
    Where("chain_id = ? AND chapter_number = ? AND state = ?",
      chainID, chapter, types.AssignmentStateAssigned).
    Updates(map[string]interface{}{
      "state":      types.AssignmentStateReleased,
      "updated_at": time.Now().UTC(),
    }).Error
}

func (r *assignmentRepo) LiveForChain(ctx context.Context, tx *gorm.DB, chainID uuid.UUID, now time.Time) ([]*types.Assignment, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var rows []*types.Assignment
  if err := transaction.WithContext(ctx).
    Where("chain_id = ? AND state = ? AND expires_at > ?", chainID, types.AssignmentStateAssigned, now).
    Find(&rows).Error; err != nil {
    return nil, err
  }
  return rows, nil
}

func (r *assignmentRepo) LiveForHolder(ctx context.Context, tx *gorm.DB, chainID uuid.UUID, holderID string, now time.Time) (*types.Assignment, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if holderID == "" {
    return nil, nil
  }
  var row types.Assignment
  err := transaction.WithContext(ctx).
    Where("chain_id = ? AND holder_id = ? AND state = ? AND expires_at > ?",
      chainID, holderID, types.AssignmentStateAssigned, now).
    Order("claimed_at DESC").
    First(&row).Error
  if errors.Is(err, gorm.ErrRecordNotFound) {
    return nil, nil
  }
  if err != nil {
    return nil, err
  }
  return &row, nil
}

func (r *assignmentRepo) CountLive(ctx context.Context, tx *gorm.DB, chainID uuid.UUID, now time.Time) (int64, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var n int64
  if err := transaction.WithContext(ctx).
    Model(&types.Assignment{}).
    Where("chain_id = ? AND state = ? AND expires_at > ?", chainID, types.AssignmentStateAssigned, now).
    Count(&n).Error; err != nil {
    return 0, err
  }
  return n, nil
}

func (r *assignmentRepo) ReassignHolder(ctx context.Context, tx *gorm.DB, fromHolder, toHolder string) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if fromHolder == "" || toHolder == "" || fromHolder == toHolder {
    return nil
  }
  return transaction.WithContext(ctx).
    Model(&types.Assignment{}).
    Where("holder_id = ?", fromHolder).
    Updates(map[string]interface{}{
      "holder_id":  toHolder,
      "updated_at": time.Now().UTC(),
    }).Error
}
