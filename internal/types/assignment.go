package types

import (
	"time"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	AssignmentStateAssigned = "assigned"
	AssignmentStateReleased = "released"
)

// Assignment is the current custody of one chapter within one chain. There
// is exactly one row per (chain, chapter); claims update it in place. A row
// counts as live only while state is "assigned" and expires_at is in the
// future — expiry is lazy, no sweeper.
type Assignment struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ChainID       uuid.UUID `gorm:"type:uuid;not null;index:idx_chain_chapter,unique" json:"chain_id"`
	Chain         *Chain    `gorm:"constraint:OnDelete:CASCADE;foreignKey:ChainID;references:ID" json:"chain,omitempty"`
	ChapterNumber int       `gorm:"column:chapter_number;not null;index:idx_chain_chapter,unique" json:"chapter_number"`
	HolderID      string    `gorm:"column:holder_id;not null;index" json:"holder_id"`
	State         string    `gorm:"column:state;not null;default:'assigned'" json:"state"`
	ClaimedAt     time.Time `gorm:"column:claimed_at;not null" json:"claimed_at"`
	ExpiresAt     time.Time `gorm:"column:expires_at;not null;index" json:"expires_at"`
	CreatedAt     time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time `gorm:"not null" json:"updated_at"`
}

func (Assignment) TableName() string { return "assignment" }

func (a *Assignment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// Live reports whether the row still excludes other holders at time now.
func (a *Assignment) Live(now time.Time) bool {
	return a != nil && a.State == AssignmentStateAssigned && a.ExpiresAt.After(now)
}
