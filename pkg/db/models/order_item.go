package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderItem captures the snapshot of one checkout line within an order.
// Insertion order is the checkout order.
type OrderItem struct {
	ID               uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	OrderID          uuid.UUID  `gorm:"column:order_id;type:uuid;not null"`
	ProductVariantID uuid.UUID  `gorm:"column:product_variant_id;type:uuid;not null"`
	ShopID           uuid.UUID  `gorm:"column:shop_id;type:uuid;not null"`
	Quantity         int        `gorm:"column:quantity;not null"`
	TotalCents       int        `gorm:"column:total_cents;not null"`
	Note             *string    `gorm:"column:note"`
	DeliveryID       *uuid.UUID `gorm:"column:delivery_id;type:uuid"`
	Position         int        `gorm:"column:position;not null"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
