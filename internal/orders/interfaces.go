package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/loumoapp/loumo-backend/pkg/db/models"
	"github.com/loumoapp/loumo-backend/pkg/enums"
)

// Repository defines persistence operations for order tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	CreateOrderItems(ctx context.Context, items []models.OrderItem) error
	FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindVariantsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.ProductVariant, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus, at time.Time) error
}

// StockReserver reserves inventory for order lines inside the order transaction.
type StockReserver interface {
	Reserve(ctx context.Context, tx *gorm.DB, variantID, shopID uuid.UUID, qty int) (*models.Stock, error)
}

// NotificationEmitter appends a notification row inside the order transaction.
type NotificationEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, notification *models.Notification) error
}
