package orders

import (
	"github.com/google/uuid"
)

// OrderLineInput is one checkout line of a create-order request.
type OrderLineInput struct {
	ProductVariantID uuid.UUID `json:"product_variant_id" validate:"required"`
	ShopID           uuid.UUID `json:"shop_id" validate:"required"`
	Quantity         int       `json:"quantity" validate:"required,min=1"`
	Note             *string   `json:"note,omitempty"`
}

// CreateOrderInput carries an already-authorized order creation request.
type CreateOrderInput struct {
	UserID           uuid.UUID        `json:"user_id" validate:"required"`
	AddressID        uuid.UUID        `json:"address_id" validate:"required"`
	DeliveryFeeCents int              `json:"delivery_fee_cents" validate:"min=0"`
	Note             *string          `json:"note,omitempty"`
	Lines            []OrderLineInput `json:"lines" validate:"required,min=1,dive"`
}
