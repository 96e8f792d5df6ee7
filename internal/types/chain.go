package types

import (
	"time"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Chain struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Slug        string    `gorm:"column:slug;not null;uniqueIndex" json:"slug"`
	DisplayName string    `gorm:"column:display_name;not null" json:"display_name"`
	Reason      string    `gorm:"column:reason" json:"reason"`
	Active      bool      `gorm:"column:active;not null;default:true" json:"active"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null" json:"updated_at"`
}

func (Chain) TableName() string { return "chain" }

func (c *Chain) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
