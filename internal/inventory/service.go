package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/loumoapp/loumo-backend/pkg/db/models"
	pkgerrors "github.com/loumoapp/loumo-backend/pkg/errors"
)

// Service owns every mutation of stock quantities. Order creation reserves
// through it inside the order transaction, restocking runs standalone.
type Service interface {
	Reserve(ctx context.Context, tx *gorm.DB, variantID, shopID uuid.UUID, qty int) (*models.Stock, error)
	Restock(ctx context.Context, input RestockInput) (*models.Stock, error)
	DetachPromotion(ctx context.Context, stockID, promotionID uuid.UUID) error
}

type service struct {
	repo Repository
}

// RestockInput carries a stock replenishment.
type RestockInput struct {
	StockID     uuid.UUID
	Delta       int
	PromotionID *uuid.UUID
}

// NewService wires inventory dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "inventory repository required")
	}
	return &service{repo: repo}, nil
}

// Reserve decrements the stock row for one order line. It must run inside the
// caller's transaction so a later line failing rolls this decrement back.
func (s *service) Reserve(ctx context.Context, tx *gorm.DB, variantID, shopID uuid.UUID, qty int) (*models.Stock, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required")
	}
	if variantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product variant id required")
	}
	if shopID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shop id required")
	}
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation quantity must be positive")
	}

	repo := s.repo.WithTx(tx)
	affected, err := repo.DecrementGuarded(ctx, variantID, shopID, qty)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve stock")
	}
	if affected == 0 {
		// Distinguish a missing row from an insufficient one.
		if _, err := repo.FindByVariantAndShop(ctx, variantID, shopID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "stock not found for variant in shop")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock")
		}
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock for variant")
	}

	stock, err := repo.FindByVariantAndShop(ctx, variantID, shopID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload stock")
	}
	return stock, nil
}

func (s *service) Restock(ctx context.Context, input RestockInput) (*models.Stock, error) {
	if input.StockID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock id required")
	}
	if input.Delta <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "restock delta must be positive")
	}

	affected, err := s.repo.Increment(ctx, input.StockID, input.Delta, time.Now().UTC())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restock")
	}
	if affected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "stock not found")
	}

	if input.PromotionID != nil {
		if *input.PromotionID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "promotion id must not be nil when provided")
		}
		if _, err := s.repo.SetPromotion(ctx, input.StockID, *input.PromotionID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "attach promotion")
		}
	}

	stock, err := s.repo.FindByID(ctx, input.StockID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload stock")
	}
	return stock, nil
}

// DetachPromotion removes a promotion from a stock row. The promotion must
// currently be attached; detaching something else is a conflict, not a no-op.
func (s *service) DetachPromotion(ctx context.Context, stockID, promotionID uuid.UUID) error {
	if stockID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stock id required")
	}
	if promotionID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "promotion id required")
	}

	affected, err := s.repo.ClearPromotion(ctx, stockID, promotionID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "detach promotion")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "promotion is not attached to stock")
	}
	return nil
}
