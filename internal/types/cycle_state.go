package types

import (
	"time"
	"github.com/google/uuid"

	"github.com/avelir/psalter-backend/internal/psalter"
)

// CycleState tracks, per chain, which chapters of the current cycle are
// done. Rollover (increment cycle_number, clear the set) is a conditional
// update guarded by the old cycle_number so it happens exactly once.
type CycleState struct {
	ChainID     uuid.UUID          `gorm:"type:uuid;primaryKey" json:"chain_id"`
	Chain       *Chain             `gorm:"constraint:OnDelete:CASCADE;foreignKey:ChainID;references:ID" json:"chain,omitempty"`
	CycleNumber int                `gorm:"column:cycle_number;not null;default:1" json:"cycle_number"`
	Completed   psalter.ChapterSet `gorm:"column:completed" json:"-"`
	UpdatedAt   time.Time          `gorm:"not null" json:"updated_at"`
}

func (CycleState) TableName() string { return "cycle_state" }
