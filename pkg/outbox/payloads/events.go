package payloads

import (
	"github.com/google/uuid"

	"github.com/loumoapp/loumo-backend/pkg/enums"
)

// OrderStatusEvent is emitted on every order status transition.
type OrderStatusEvent struct {
	OrderID    uuid.UUID         `json:"order_id"`
	Ref        string            `json:"ref"`
	UserID     uuid.UUID         `json:"user_id"`
	Status     enums.OrderStatus `json:"status"`
	TotalCents int               `json:"total_cents"`
}

// PaymentStatusEvent is emitted whenever a payment reaches a terminal status.
type PaymentStatusEvent struct {
	PaymentID   uuid.UUID           `json:"payment_id"`
	OrderID     uuid.UUID           `json:"order_id"`
	DepositID   string              `json:"deposit_id"`
	Method      enums.PaymentMethod `json:"method"`
	Status      enums.PaymentStatus `json:"status"`
	AmountCents int                 `json:"amount_cents"`
	Ref         string              `json:"ref"`
}

// NotificationRequestedEvent tells downstream systems to deliver a notification.
type NotificationRequestedEvent struct {
	NotificationID uuid.UUID                 `json:"notification_id"`
	Variant        enums.NotificationVariant `json:"variant"`
	Type           enums.NotificationType    `json:"type"`
	Action         string                    `json:"action"`
	Description    string                    `json:"description"`
	UserID         *uuid.UUID                `json:"user_id,omitempty"`
	OrderID        *uuid.UUID                `json:"order_id,omitempty"`
	PaymentID      *uuid.UUID                `json:"payment_id,omitempty"`
	StockID        *uuid.UUID                `json:"stock_id,omitempty"`
}
