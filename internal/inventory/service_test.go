package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/loumoapp/loumo-backend/pkg/db/models"
	pkgerrors "github.com/loumoapp/loumo-backend/pkg/errors"
)

func TestReserve(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	variant := uuid.New()
	shop := uuid.New()
	seedStock(t, db, models.Stock{
		ID:               uuid.New(),
		ProductVariantID: variant,
		ShopID:           shop,
		Quantity:         5,
		Threshold:        2,
	})

	err := db.Transaction(func(tx *gorm.DB) error {
		stock, terr := svc.Reserve(ctx, tx, variant, shop, 3)
		if terr != nil {
			return terr
		}
		if stock.Quantity != 2 {
			t.Fatalf("expected quantity 2 after reservation, got %d", stock.Quantity)
		}
		if !stock.IsLow() {
			t.Fatalf("expected stock at threshold to report low")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("reserve transaction: %v", err)
	}

	var reloaded models.Stock
	if err := db.First(&reloaded, "product_variant_id = ?", variant).Error; err != nil {
		t.Fatalf("reload stock: %v", err)
	}
	if reloaded.Quantity != 2 {
		t.Fatalf("expected persisted quantity 2, got %d", reloaded.Quantity)
	}
}

func TestReserve_Insufficient(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	variant := uuid.New()
	shop := uuid.New()
	seedStock(t, db, models.Stock{
		ID:               uuid.New(),
		ProductVariantID: variant,
		ShopID:           shop,
		Quantity:         1,
	})

	err := db.Transaction(func(tx *gorm.DB) error {
		_, terr := svc.Reserve(ctx, tx, variant, shop, 2)
		return terr
	})
	if err == nil {
		t.Fatal("expected insufficient stock error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("unexpected error: %v", err)
	}

	var reloaded models.Stock
	if err := db.First(&reloaded, "product_variant_id = ?", variant).Error; err != nil {
		t.Fatalf("reload stock: %v", err)
	}
	if reloaded.Quantity != 1 {
		t.Fatalf("failed reservation must not change quantity, got %d", reloaded.Quantity)
	}
}

func TestReserve_RollsBackEarlierLines(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	shop := uuid.New()
	variantA := uuid.New()
	variantB := uuid.New()
	seedStock(t, db, models.Stock{ID: uuid.New(), ProductVariantID: variantA, ShopID: shop, Quantity: 5})
	seedStock(t, db, models.Stock{ID: uuid.New(), ProductVariantID: variantB, ShopID: shop, Quantity: 1})

	err := db.Transaction(func(tx *gorm.DB) error {
		if _, terr := svc.Reserve(ctx, tx, variantA, shop, 3); terr != nil {
			return terr
		}
		_, terr := svc.Reserve(ctx, tx, variantB, shop, 2)
		return terr
	})
	if err == nil {
		t.Fatal("expected second reservation to fail the transaction")
	}

	var stockA models.Stock
	if err := db.First(&stockA, "product_variant_id = ?", variantA).Error; err != nil {
		t.Fatalf("reload stock a: %v", err)
	}
	if stockA.Quantity != 5 {
		t.Fatalf("expected first line rolled back to 5, got %d", stockA.Quantity)
	}
}

func TestReserve_NotFound(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)

	err := db.Transaction(func(tx *gorm.DB) error {
		_, terr := svc.Reserve(context.Background(), tx, uuid.New(), uuid.New(), 1)
		return terr
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReserve_InvalidQty(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)

	err := db.Transaction(func(tx *gorm.DB) error {
		_, terr := svc.Reserve(context.Background(), tx, uuid.New(), uuid.New(), 0)
		return terr
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRestock(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)

	stockID := uuid.New()
	promotionID := uuid.New()
	seedStock(t, db, models.Stock{
		ID:               stockID,
		ProductVariantID: uuid.New(),
		ShopID:           uuid.New(),
		Quantity:         1,
	})

	stock, err := svc.Restock(context.Background(), RestockInput{
		StockID:     stockID,
		Delta:       9,
		PromotionID: &promotionID,
	})
	if err != nil {
		t.Fatalf("restock: %v", err)
	}
	if stock.Quantity != 10 {
		t.Fatalf("expected quantity 10, got %d", stock.Quantity)
	}
	if stock.RestockedAt == nil {
		t.Fatal("expected restocked_at to be stamped")
	}
	if stock.PromotionID == nil || *stock.PromotionID != promotionID {
		t.Fatalf("expected promotion attached, got %+v", stock.PromotionID)
	}
}

func TestRestock_UnknownStock(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)

	_, err := svc.Restock(context.Background(), RestockInput{StockID: uuid.New(), Delta: 1})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDetachPromotion(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)

	stockID := uuid.New()
	promotionID := uuid.New()
	seedStock(t, db, models.Stock{
		ID:               stockID,
		ProductVariantID: uuid.New(),
		ShopID:           uuid.New(),
		Quantity:         3,
		PromotionID:      &promotionID,
	})

	if err := svc.DetachPromotion(context.Background(), stockID, promotionID); err != nil {
		t.Fatalf("detach promotion: %v", err)
	}

	var reloaded models.Stock
	if err := db.First(&reloaded, "id = ?", stockID).Error; err != nil {
		t.Fatalf("reload stock: %v", err)
	}
	if reloaded.PromotionID != nil {
		t.Fatalf("expected promotion cleared, got %v", reloaded.PromotionID)
	}

	err := svc.DetachPromotion(context.Background(), stockID, promotionID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected conflict on repeated detach, got %v", err)
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:inventory_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Stock{}); err != nil {
		t.Fatalf("migrate stock: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(NewRepository(db))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func seedStock(t *testing.T, db *gorm.DB, stock models.Stock) {
	t.Helper()
	if err := db.Create(&stock).Error; err != nil {
		t.Fatalf("seed stock: %v", err)
	}
}
