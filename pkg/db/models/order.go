package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/loumoapp/loumo-backend/pkg/enums"
)

// Order is the buyer-facing order aggregate. Status moves only through the
// order workflow, terminal statuses freeze items and stock alike.
type Order struct {
	ID                uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	Ref               string            `gorm:"column:ref;not null;uniqueIndex"`
	UserID            uuid.UUID         `gorm:"column:user_id;type:uuid;not null"`
	AddressID         uuid.UUID         `gorm:"column:address_id;type:uuid;not null"`
	Status            enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'pending'"`
	TotalCents        int               `gorm:"column:total_cents;not null"`
	DeliveryFeeCents  int               `gorm:"column:delivery_fee_cents;not null;default:0"`
	Note              *string           `gorm:"column:note"`
	Items             []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Payments          []Payment         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Deliveries        []Delivery        `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CanceledAt        *time.Time        `gorm:"column:canceled_at"`
	CompletedAt       *time.Time        `gorm:"column:completed_at"`
	CreatedAt         time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
