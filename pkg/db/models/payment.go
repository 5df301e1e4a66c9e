package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/loumoapp/loumo-backend/pkg/enums"
)

// Payment records one settlement attempt against an order. Gateway payments
// are reconciled asynchronously, cash payments are written terminal.
type Payment struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderID       uuid.UUID           `gorm:"column:order_id;type:uuid;not null"`
	Method        enums.PaymentMethod `gorm:"column:method;type:payment_method;not null"`
	Status        enums.PaymentStatus `gorm:"column:status;type:payment_status;not null;default:'pending'"`
	DepositID     string              `gorm:"column:deposit_id;not null;uniqueIndex"`
	AmountCents   int                 `gorm:"column:amount_cents;not null"`
	PayerPhone    string              `gorm:"column:payer_phone;not null"`
	Ref           string              `gorm:"column:ref;not null"`
	ProviderTxnID *string             `gorm:"column:provider_txn_id"`
	FailureReason *string             `gorm:"column:failure_reason"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
