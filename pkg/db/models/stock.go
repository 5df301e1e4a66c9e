package models

import (
	"time"

	"github.com/google/uuid"
)

// Stock tracks the sellable quantity of a product variant in one shop.
// Reservations decrement quantity with a guarded update, so the row is the
// serialization point against overselling.
type Stock struct {
	ID               uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	ProductVariantID uuid.UUID  `gorm:"column:product_variant_id;type:uuid;not null;uniqueIndex:idx_stocks_variant_shop"`
	ShopID           uuid.UUID  `gorm:"column:shop_id;type:uuid;not null;uniqueIndex:idx_stocks_variant_shop"`
	Quantity         int        `gorm:"column:quantity;not null;default:0"`
	Threshold        int        `gorm:"column:threshold;not null;default:0"`
	PromotionID      *uuid.UUID `gorm:"column:promotion_id;type:uuid"`
	RestockedAt      *time.Time `gorm:"column:restocked_at"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// IsLow reports whether the remaining quantity has reached the alert threshold.
func (s Stock) IsLow() bool {
	return s.Quantity <= s.Threshold
}
