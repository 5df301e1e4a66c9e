package deliveries

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/loumoapp/loumo-backend/pkg/db/models"
	"github.com/loumoapp/loumo-backend/pkg/enums"
)

// Repository defines persistence operations for deliveries and the order
// items they carry.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateDelivery(ctx context.Context, delivery *models.Delivery) error
	FindByID(ctx context.Context, deliveryID uuid.UUID) (*models.Delivery, error)
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindOrderItems(ctx context.Context, orderID uuid.UUID, itemIDs []uuid.UUID) ([]models.OrderItem, error)
	AttachItems(ctx context.Context, deliveryID, orderID uuid.UUID, itemIDs []uuid.UUID) (int64, error)
	SetAgent(ctx context.Context, deliveryID, agentID uuid.UUID) error
	ClearAgent(ctx context.Context, deliveryID, agentID uuid.UUID) (int64, error)
	UpdateStatus(ctx context.Context, deliveryID uuid.UUID, status enums.DeliveryStatus, at time.Time) error
}

// OrderCompleter is the slice of the order service invoked when the last
// delivery of an order completes.
type OrderCompleter interface {
	MaybeComplete(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
}
