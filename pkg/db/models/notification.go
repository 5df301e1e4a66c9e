package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/loumoapp/loumo-backend/pkg/enums"
)

// Notification is the write-once record of a domain event surfaced to users.
type Notification struct {
	ID          uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	Variant     enums.NotificationVariant `gorm:"column:variant;type:notification_variant;not null"`
	Type        enums.NotificationType    `gorm:"column:type;type:notification_type;not null"`
	Action      string                    `gorm:"column:action;not null"`
	Description string                    `gorm:"column:description;not null"`
	UserID      *uuid.UUID                `gorm:"column:user_id;type:uuid"`
	OrderID     *uuid.UUID                `gorm:"column:order_id;type:uuid"`
	PaymentID   *uuid.UUID                `gorm:"column:payment_id;type:uuid"`
	StockID     *uuid.UUID                `gorm:"column:stock_id;type:uuid"`
	CreatedAt   time.Time                 `gorm:"column:created_at;autoCreateTime"`
}
