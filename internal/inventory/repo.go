package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/loumoapp/loumo-backend/pkg/db/models"
)

// Repository exposes persistence helpers for stock rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByVariantAndShop(ctx context.Context, variantID, shopID uuid.UUID) (*models.Stock, error)
	FindByID(ctx context.Context, stockID uuid.UUID) (*models.Stock, error)
	DecrementGuarded(ctx context.Context, variantID, shopID uuid.UUID, qty int) (int64, error)
	Increment(ctx context.Context, stockID uuid.UUID, delta int, now time.Time) (int64, error)
	SetPromotion(ctx context.Context, stockID uuid.UUID, promotionID uuid.UUID) (int64, error)
	ClearPromotion(ctx context.Context, stockID, promotionID uuid.UUID) (int64, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a stock repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) FindByVariantAndShop(ctx context.Context, variantID, shopID uuid.UUID) (*models.Stock, error) {
	var stock models.Stock
	err := r.db.WithContext(ctx).
		Where("product_variant_id = ? AND shop_id = ?", variantID, shopID).
		First(&stock).Error
	if err != nil {
		return nil, err
	}
	return &stock, nil
}

func (r *repositoryImpl) FindByID(ctx context.Context, stockID uuid.UUID) (*models.Stock, error) {
	var stock models.Stock
	if err := r.db.WithContext(ctx).First(&stock, "id = ?", stockID).Error; err != nil {
		return nil, err
	}
	return &stock, nil
}

// DecrementGuarded performs the guarded decrement that serializes concurrent
// reservations on the stock row. Zero rows affected means the row is missing
// or holds less than qty.
func (r *repositoryImpl) DecrementGuarded(ctx context.Context, variantID, shopID uuid.UUID, qty int) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Stock{}).
		Where("product_variant_id = ? AND shop_id = ? AND quantity >= ?", variantID, shopID, qty).
		UpdateColumn("quantity", gorm.Expr("quantity - ?", qty))
	return result.RowsAffected, result.Error
}

func (r *repositoryImpl) Increment(ctx context.Context, stockID uuid.UUID, delta int, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Stock{}).
		Where("id = ?", stockID).
		Updates(map[string]any{
			"quantity":     gorm.Expr("quantity + ?", delta),
			"restocked_at": now,
		})
	return result.RowsAffected, result.Error
}

func (r *repositoryImpl) SetPromotion(ctx context.Context, stockID uuid.UUID, promotionID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Stock{}).
		Where("id = ?", stockID).
		UpdateColumn("promotion_id", promotionID)
	return result.RowsAffected, result.Error
}

// ClearPromotion detaches a promotion only when the row currently references
// it, so a stale detach surfaces instead of silently writing nothing.
func (r *repositoryImpl) ClearPromotion(ctx context.Context, stockID, promotionID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Stock{}).
		Where("id = ? AND promotion_id = ?", stockID, promotionID).
		UpdateColumn("promotion_id", nil)
	return result.RowsAffected, result.Error
}
