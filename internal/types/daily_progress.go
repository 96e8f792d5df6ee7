package types

import (
	"time"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DailyProgress is the server-side copy of one holder's per-day completion
// cache: a grow-only set of single items and grow-only counters for
// repeatable ones. Writes merge rather than overwrite, so pushes from two
// devices converge.
type DailyProgress struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	HolderID    string         `gorm:"column:holder_id;not null;index:idx_holder_day,unique" json:"holder_id"`
	Day         string         `gorm:"column:day;not null;index:idx_holder_day,unique" json:"day"`
	Singles     datatypes.JSON `gorm:"type:jsonb;column:singles" json:"singles"`
	Repeatables datatypes.JSON `gorm:"type:jsonb;column:repeatables" json:"repeatables"`
	Version     int            `gorm:"column:version;not null;default:0" json:"-"`
	CreatedAt   time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null" json:"updated_at"`
}

func (DailyProgress) TableName() string { return "daily_progress" }

func (p *DailyProgress) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
