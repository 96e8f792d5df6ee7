package types

import (
	"time"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CompletionRecord is append-only. The unique idempotency key is what makes
// a retried complete call return the original row instead of a duplicate.
type CompletionRecord struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ChainID        uuid.UUID `gorm:"type:uuid;not null;index:idx_chain_cycle" json:"chain_id"`
	Chain          *Chain    `gorm:"constraint:OnDelete:CASCADE;foreignKey:ChainID;references:ID" json:"chain,omitempty"`
	ChapterNumber  int       `gorm:"column:chapter_number;not null" json:"chapter_number"`
	CycleNumber    int       `gorm:"column:cycle_number;not null;index:idx_chain_cycle" json:"cycle_number"`
	HolderID       string    `gorm:"column:holder_id;not null;index" json:"holder_id"`
	IdempotencyKey string    `gorm:"column:idempotency_key;not null;uniqueIndex" json:"idempotency_key"`
	CompletedAt    time.Time `gorm:"column:completed_at;not null" json:"completed_at"`
	CreatedAt      time.Time `gorm:"not null" json:"created_at"`
}

func (CompletionRecord) TableName() string { return "completion_record" }

func (r *CompletionRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
