package models

import (
	"time"

	"github.com/google/uuid"
)

// Address is a delivery destination owned by a user.
type Address struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID      uuid.UUID `gorm:"column:user_id;type:uuid;not null"`
	Label       string    `gorm:"column:label;not null"`
	Street      string    `gorm:"column:street;not null"`
	City        string    `gorm:"column:city;not null"`
	CountryCode string    `gorm:"column:country_code;not null;default:'CMR'"`
	Latitude    *float64  `gorm:"column:latitude"`
	Longitude   *float64  `gorm:"column:longitude"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
