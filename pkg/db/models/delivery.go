package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/loumoapp/loumo-backend/pkg/enums"
)

// Delivery groups order items dispatched together under one tracking code.
type Delivery struct {
	ID           uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	OrderID      uuid.UUID              `gorm:"column:order_id;type:uuid;not null"`
	AgentID      *uuid.UUID             `gorm:"column:agent_id;type:uuid"`
	Status       enums.DeliveryStatus   `gorm:"column:status;type:delivery_status;not null;default:'notstarted'"`
	Priority     enums.DeliveryPriority `gorm:"column:priority;type:delivery_priority;not null;default:'normal'"`
	TrackingCode string                 `gorm:"column:tracking_code;not null;uniqueIndex"`
	Items        []OrderItem            `gorm:"foreignKey:DeliveryID"`
	StartedAt    *time.Time             `gorm:"column:started_at"`
	CompletedAt  *time.Time             `gorm:"column:completed_at"`
	CreatedAt    time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
