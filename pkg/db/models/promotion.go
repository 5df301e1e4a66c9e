package models

import (
	"time"

	"github.com/google/uuid"
)

// Promotion is a discount campaign stock rows may attach to.
type Promotion struct {
	ID              uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	Name            string     `gorm:"column:name;not null"`
	DiscountPercent int        `gorm:"column:discount_percent;not null"`
	StartsAt        time.Time  `gorm:"column:starts_at;not null"`
	EndsAt          *time.Time `gorm:"column:ends_at"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
