package payments

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/loumoapp/loumo-backend/pkg/db/models"
	"github.com/loumoapp/loumo-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payments repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) FindByID(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).Where("id = ?", paymentID).First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Payments").
		Preload("Deliveries").
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) UpdateStatus(ctx context.Context, paymentID uuid.UUID, input ExternalStatusInput) error {
	updates := map[string]any{"status": input.Status}
	if input.ProviderTxnID != nil {
		updates["provider_txn_id"] = *input.ProviderTxnID
	}
	if input.FailureReason != nil {
		updates["failure_reason"] = *input.FailureReason
	}
	return r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ?", paymentID).
		Updates(updates).Error
}

// ListReconcilable returns gateway payments still awaiting a terminal provider
// status, oldest first. Cash payments are written terminal and never show up.
func (r *repository) ListReconcilable(ctx context.Context, limit int) ([]models.Payment, error) {
	q := r.db.WithContext(ctx).
		Where("status IN ?", enums.ReconcilablePaymentStatuses).
		Where("method <> ?", enums.PaymentMethodCash).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []models.Payment
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
