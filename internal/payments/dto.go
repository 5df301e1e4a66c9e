package payments

import (
	"github.com/google/uuid"

	"github.com/loumoapp/loumo-backend/pkg/enums"
)

// OpenPaymentInput starts a settlement attempt for an order. PayerPhone is
// required for mobile-money methods and ignored for cash.
type OpenPaymentInput struct {
	OrderID    uuid.UUID           `json:"order_id" validate:"required"`
	Method     enums.PaymentMethod `json:"method" validate:"required"`
	PayerPhone string              `json:"payer_phone"`
}

// ExternalStatusInput carries a provider-reported status change.
type ExternalStatusInput struct {
	Status        enums.PaymentStatus
	ProviderTxnID *string
	FailureReason *string
}
