package deliveries

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/loumoapp/loumo-backend/pkg/db/models"
	"github.com/loumoapp/loumo-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a deliveries repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateDelivery(ctx context.Context, delivery *models.Delivery) error {
	return r.db.WithContext(ctx).Omit("Items").Create(delivery).Error
}

func (r *repository) FindByID(ctx context.Context, deliveryID uuid.UUID) (*models.Delivery, error) {
	var delivery models.Delivery
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("id = ?", deliveryID).
		First(&delivery).Error
	if err != nil {
		return nil, err
	}
	return &delivery, nil
}

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Where("id = ?", orderID).First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindOrderItems(ctx context.Context, orderID uuid.UUID, itemIDs []uuid.UUID) ([]models.OrderItem, error) {
	if len(itemIDs) == 0 {
		return nil, nil
	}
	var items []models.OrderItem
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Where("id IN ?", itemIDs).
		Find(&items).Error
	return items, err
}

// AttachItems claims unassigned items for a delivery. The delivery_id guard
// makes concurrent claims lose by affected-row count instead of overwriting.
func (r *repository) AttachItems(ctx context.Context, deliveryID, orderID uuid.UUID, itemIDs []uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.OrderItem{}).
		Where("order_id = ?", orderID).
		Where("id IN ?", itemIDs).
		Where("delivery_id IS NULL").
		UpdateColumn("delivery_id", deliveryID)
	return result.RowsAffected, result.Error
}

func (r *repository) SetAgent(ctx context.Context, deliveryID, agentID uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.Delivery{}).
		Where("id = ?", deliveryID).
		UpdateColumn("agent_id", agentID).Error
}

// ClearAgent detaches only when the given agent currently holds the delivery.
func (r *repository) ClearAgent(ctx context.Context, deliveryID, agentID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Delivery{}).
		Where("id = ?", deliveryID).
		Where("agent_id = ?", agentID).
		UpdateColumn("agent_id", nil)
	return result.RowsAffected, result.Error
}

func (r *repository) UpdateStatus(ctx context.Context, deliveryID uuid.UUID, status enums.DeliveryStatus, at time.Time) error {
	updates := map[string]any{"status": status}
	switch status {
	case enums.DeliveryStatusStarted:
		updates["started_at"] = at
	case enums.DeliveryStatusCompleted:
		updates["completed_at"] = at
	}
	return r.db.WithContext(ctx).Model(&models.Delivery{}).
		Where("id = ?", deliveryID).
		Updates(updates).Error
}
